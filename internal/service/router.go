package service

import (
	"context"
	"log/slog"

	"github.com/saiquwi/Support-chat/internal/bus"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/workerpool"
)

// RouterService 投递路由（编排层）
// 每次变更提交后计算受影响的接收者集合，为每个接收者构造独立 payload 发布到事件中心。
// 扇出永远是尽力而为：变更已落库，这里的任何失败只记日志，不影响调用方拿到成功结果；
// 漏掉的事件靠客户端拉取会话目录自愈
type RouterService struct {
	hub             *bus.Hub
	pool            *workerpool.Pool
	chatRepo        *repository.ChatRepository
	participantRepo *repository.ParticipantRepository
	messageRepo     *repository.MessageRepository
	logger          *slog.Logger
}

// NewRouterService 创建投递路由
func NewRouterService(
	hub *bus.Hub,
	pool *workerpool.Pool,
	chatRepo *repository.ChatRepository,
	participantRepo *repository.ParticipantRepository,
	messageRepo *repository.MessageRepository,
) *RouterService {
	return &RouterService{
		hub:             hub,
		pool:            pool,
		chatRepo:        chatRepo,
		participantRepo: participantRepo,
		messageRepo:     messageRepo,
		logger:          slog.Default(),
	}
}

// DispatchNewMessage 新消息扇出
// 接收者 = 会话活跃成员去掉发送者；每个接收者的未读数单独新算，
// 绝不把为某个接收者算好的摘要复用给另一个接收者
func (s *RouterService) DispatchNewMessage(msg *model.Message) {
	task := func() {
		// 调用方的请求上下文在响应返回后会被取消，这里用独立上下文
		ctx := context.Background()

		chat, err := s.chatRepo.GetByID(ctx, msg.ChatID)
		if err != nil {
			s.logger.Warn("Fanout: failed to load chat", "chatId", msg.ChatID, "error", err)
			return
		}

		participants, err := s.participantRepo.ListActiveParticipants(ctx, msg.ChatID)
		if err != nil {
			s.logger.Warn("Fanout: failed to load participants", "chatId", msg.ChatID, "error", err)
			return
		}

		for _, p := range participants {
			if p.ID == msg.SenderID {
				continue
			}

			unread, err := s.messageRepo.CountUnread(ctx, msg.ChatID, p.ID)
			if err != nil {
				s.logger.Warn("Fanout: failed to count unread",
					"chatId", msg.ChatID, "recipientId", p.ID, "error", err)
				continue
			}

			s.hub.Publish(bus.TopicNewMessage, &bus.NewMessageEvent{
				Message:     msg,
				Chat:        s.buildSummary(chat, participants, msg, unread),
				RecipientID: p.ID,
				ChatID:      msg.ChatID,
				SenderID:    msg.SenderID,
			})
		}
	}

	if !s.pool.TrySubmit(task) {
		s.logger.Warn("Fanout queue saturated, newMessage events dropped", "chatId", msg.ChatID)
	}
}

// DispatchStatusChanged 消息状态变更扇出
// 对每条变更消息，通知其会话的全部活跃成员；订阅方按 chatId 过滤
func (s *RouterService) DispatchStatusChanged(messages []*model.Message) {
	if len(messages) == 0 {
		return
	}

	task := func() {
		ctx := context.Background()

		for _, msg := range messages {
			participants, err := s.participantRepo.ListActiveParticipants(ctx, msg.ChatID)
			if err != nil {
				s.logger.Warn("Fanout: failed to load participants",
					"chatId", msg.ChatID, "error", err)
				continue
			}

			for _, p := range participants {
				s.hub.Publish(bus.TopicMessageStatusChanged, &bus.MessageStatusEvent{
					Message: msg,
					ChatID:  msg.ChatID,
					UserID:  p.ID,
				})
			}
		}
	}

	if !s.pool.TrySubmit(task) {
		s.logger.Warn("Fanout queue saturated, status events dropped")
	}
}

// DispatchChatCreated 会话创建扇出
// 通知除创建者外的每个成员；chatUpdated 同步发布，兼容只订阅列表刷新的旧客户端
func (s *RouterService) DispatchChatCreated(chat *model.Chat, creatorID int64) {
	task := func() {
		ctx := context.Background()

		participants, err := s.participantRepo.ListActiveParticipants(ctx, chat.ID)
		if err != nil {
			s.logger.Warn("Fanout: failed to load participants", "chatId", chat.ID, "error", err)
			return
		}

		for _, p := range participants {
			if p.ID == creatorID {
				continue
			}

			unread, err := s.messageRepo.CountUnread(ctx, chat.ID, p.ID)
			if err != nil {
				s.logger.Warn("Fanout: failed to count unread",
					"chatId", chat.ID, "recipientId", p.ID, "error", err)
				unread = 0
			}

			event := &bus.ChatEvent{
				Chat:   s.buildSummary(chat, participants, nil, unread),
				UserID: p.ID,
			}
			s.hub.Publish(bus.TopicChatCreated, event)
			s.hub.Publish(bus.TopicChatUpdated, event)
		}
	}

	if !s.pool.TrySubmit(task) {
		s.logger.Warn("Fanout queue saturated, chatCreated events dropped", "chatId", chat.ID)
	}
}

// BroadcastUserStatus 用户状态变更广播（无接收者过滤）
func (s *RouterService) BroadcastUserStatus(user *model.User) {
	s.hub.Publish(bus.TopicUserStatusChanged, &bus.UserStatusEvent{User: user})
}

// buildSummary 为单个接收者构造独立的会话摘要
// 每次调用返回新对象：摘要里的 UnreadCount 属于特定接收者，共享会产生脏未读数
func (s *RouterService) buildSummary(chat *model.Chat, participants []*model.User, lastMessage *model.Message, unread int) *model.ChatSummary {
	members := make([]*model.User, len(participants))
	copy(members, participants)

	return &model.ChatSummary{
		Chat:         *chat,
		Participants: members,
		LastMessage:  lastMessage,
		UnreadCount:  unread,
	}
}
