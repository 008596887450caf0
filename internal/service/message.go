package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/snowflake"
)

// DefaultMessageLimit 消息列表默认条数
const DefaultMessageLimit = 50

// MessageService 消息账本
// 追加型日志：sender/content/created_at 写入后不可变，
// 状态变更只通过 ReadStateService 走单调转换
type MessageService struct {
	messageRepo *repository.MessageRepository
	chatRepo    *repository.ChatRepository
	membership  *MembershipService
	router      *RouterService
	snowflake   *snowflake.Node
	logger      *slog.Logger
}

// NewMessageService 创建消息账本服务
func NewMessageService(
	messageRepo *repository.MessageRepository,
	chatRepo *repository.ChatRepository,
	membership *MembershipService,
	router *RouterService,
	sf *snowflake.Node,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		chatRepo:    chatRepo,
		membership:  membership,
		router:      router,
		snowflake:   sf,
		logger:      slog.Default(),
	}
}

// Append 追加消息
// 校验在任何写入之前完成：内容非空、发送者是活跃成员、会话活跃；
// 成功后刷新会话 updated_at。初始状态 SENT
func (s *MessageService) Append(ctx context.Context, chatID, senderID int64, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrEmptyContent
	}

	if _, err := s.chatRepo.GetByID(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, apperrors.ErrChatNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	if err := s.membership.Require(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:       s.snowflake.Generate().Int64(),
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
		Status:   model.MessageSent,
	}
	if err := s.messageRepo.Insert(ctx, msg); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	if err := s.chatRepo.Touch(ctx, chatID); err != nil {
		s.logger.Warn("Failed to touch chat", "chatId", chatID, "error", err)
	}

	// 补全发送者信息，扇出 payload 直接可用
	saved, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	s.logger.Debug("Message appended", "messageId", saved.ID, "chatId", chatID, "senderId", senderID)

	s.router.DispatchNewMessage(saved)
	return saved, nil
}

// ListMessages 按时间升序获取会话消息，要求调用者是活跃成员
func (s *MessageService) ListMessages(ctx context.Context, chatID, callerID int64, limit int) ([]*model.Message, error) {
	if err := s.membership.Require(ctx, chatID, callerID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	messages, err := s.messageRepo.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return messages, nil
}

// GetByID 通过 ID 获取消息
func (s *MessageService) GetByID(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return msg, nil
}
