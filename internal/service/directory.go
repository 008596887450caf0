package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/snowflake"
)

// DirectoryService 会话目录
// 面向单个观察者的会话视图：摘要里的未读数和最后一条消息
// 每次请求都现算，不同观察者之间绝不共享
type DirectoryService struct {
	chatRepo        *repository.ChatRepository
	participantRepo *repository.ParticipantRepository
	messageRepo     *repository.MessageRepository
	userRepo        *repository.UserRepository
	presenceRepo    *repository.PresenceRepository
	membership      *MembershipService
	router          *RouterService
	snowflake       *snowflake.Node
	logger          *slog.Logger
}

// NewDirectoryService 创建会话目录服务
func NewDirectoryService(
	chatRepo *repository.ChatRepository,
	participantRepo *repository.ParticipantRepository,
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	presenceRepo *repository.PresenceRepository,
	membership *MembershipService,
	router *RouterService,
	sf *snowflake.Node,
) *DirectoryService {
	return &DirectoryService{
		chatRepo:        chatRepo,
		participantRepo: participantRepo,
		messageRepo:     messageRepo,
		userRepo:        userRepo,
		presenceRepo:    presenceRepo,
		membership:      membership,
		router:          router,
		snowflake:       sf,
		logger:          slog.Default(),
	}
}

// CreateChatRequest 创建会话请求
type CreateChatRequest struct {
	Title          string  `json:"title"`
	ParticipantIDs []int64 `json:"participantIds"`
}

// ListForUser 观察者的活跃会话列表，按最近更新排序
func (s *DirectoryService) ListForUser(ctx context.Context, viewerID int64) ([]*model.ChatSummary, error) {
	chatIDs, err := s.participantRepo.ListActiveChatIDs(ctx, viewerID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	summaries := make([]*model.ChatSummary, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		summary, err := s.buildSummaryFor(ctx, chatID, viewerID)
		if err != nil {
			// 单个会话构建失败不拖垮整个列表
			s.logger.Warn("Failed to build chat summary", "chatId", chatID, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	s.overlayPresence(ctx, summaries)
	return summaries, nil
}

// GetDetail 会话详情：完整成员、消息历史、观察者未读数。仅活跃成员可见
func (s *DirectoryService) GetDetail(ctx context.Context, chatID, viewerID int64) (*model.ChatDetail, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return nil, apperrors.ErrChatNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	if err := s.membership.Require(ctx, chatID, viewerID); err != nil {
		return nil, err
	}

	participants, err := s.participantRepo.ListActiveParticipants(ctx, chatID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	messages, err := s.messageRepo.ListByChat(ctx, chatID, 0)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	unread, err := s.messageRepo.CountUnread(ctx, chatID, viewerID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return &model.ChatDetail{
		Chat:         *chat,
		Participants: participants,
		Messages:     messages,
		UnreadCount:  unread,
	}, nil
}

// CreateChat 创建普通会话
// 创建者自动成为成员；去重后不足两人报错；恰好两人是 DIRECT，更多是 GROUP
func (s *DirectoryService) CreateChat(ctx context.Context, creatorID int64, req *CreateChatRequest) (*model.ChatSummary, error) {
	memberIDs := dedupeWith(req.ParticipantIDs, creatorID)

	users, err := s.userRepo.GetByIDs(ctx, memberIDs)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if len(users) < 2 {
		return nil, apperrors.ErrNoParticipants
	}

	chatType := model.ChatGroup
	if len(users) == 2 {
		chatType = model.ChatDirect
	}

	title := strings.TrimSpace(req.Title)
	if title == "" && chatType == model.ChatGroup {
		title = "Group Chat"
	}

	chat := &model.Chat{
		ID:       s.snowflake.Generate().Int64(),
		Type:     chatType,
		Title:    title,
		Active:   true,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	for _, u := range users {
		if err := s.membership.AddParticipant(ctx, chat.ID, u.ID); err != nil {
			return nil, err
		}
	}

	s.router.DispatchChatCreated(chat, creatorID)

	return &model.ChatSummary{
		Chat:         *chat,
		Participants: users,
		UnreadCount:  0,
	}, nil
}

// CreateSupportChatRequest 创建客服会话请求
type CreateSupportChatRequest struct {
	AgentID int64 `json:"agentId,string"`
}

// CreateSupportChat 客户发起客服会话
// 指定客服时校验角色；未指定时自动匹配最近活跃的在线客服
func (s *DirectoryService) CreateSupportChat(ctx context.Context, clientID int64, agentID int64) (*model.ChatSummary, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if client.Role != model.RoleClient {
		return nil, apperrors.ErrOnlyClientAllowed
	}

	var agent *model.User
	if agentID != 0 {
		agent, err = s.userRepo.GetSupportAgent(ctx, agentID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, apperrors.ErrNotSupportAgent
			}
			return nil, apperrors.ErrDBError.Wrap(err)
		}
	} else {
		agent, err = s.userRepo.FindAvailableSupportAgent(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, apperrors.ErrNoAgentAvailable
			}
			return nil, apperrors.ErrDBError.Wrap(err)
		}
	}

	chat := &model.Chat{
		ID:       s.snowflake.Generate().Int64(),
		Type:     model.ChatSupport,
		Title:    "Support Chat - " + client.Username,
		Active:   true,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	for _, u := range []*model.User{client, agent} {
		if err := s.membership.AddParticipant(ctx, chat.ID, u.ID); err != nil {
			return nil, err
		}
	}

	s.router.DispatchChatCreated(chat, clientID)

	return &model.ChatSummary{
		Chat:         *chat,
		Participants: []*model.User{client, agent},
		UnreadCount:  0,
	}, nil
}

// DeleteChat 软删除会话。仅活跃成员可操作，成员关系级联停用
func (s *DirectoryService) DeleteChat(ctx context.Context, chatID, userID int64) error {
	if err := s.membership.Require(ctx, chatID, userID); err != nil {
		return err
	}

	if err := s.chatRepo.Deactivate(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			return apperrors.ErrChatNotFound
		}
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// SupportChatsForViewer 客服视角的客服会话列表
// 客服和管理员可见；普通客户只能看到自己参与的
func (s *DirectoryService) SupportChatsForViewer(ctx context.Context, viewerID int64) ([]*model.ChatSummary, error) {
	viewer, err := s.userRepo.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if !viewer.Role.CanViewSupportChats() {
		return nil, apperrors.ErrAccessDenied
	}

	all, err := s.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	supportChats := make([]*model.ChatSummary, 0, len(all))
	for _, summary := range all {
		if summary.Type == model.ChatSupport {
			supportChats = append(supportChats, summary)
		}
	}
	return supportChats, nil
}

// buildSummaryFor 为特定观察者构建单个会话摘要
func (s *DirectoryService) buildSummaryFor(ctx context.Context, chatID, viewerID int64) (*model.ChatSummary, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	participants, err := s.participantRepo.ListActiveParticipants(ctx, chatID)
	if err != nil {
		return nil, err
	}

	last, err := s.messageRepo.LastMessage(ctx, chatID)
	if err != nil {
		return nil, err
	}

	unread, err := s.messageRepo.CountUnread(ctx, chatID, viewerID)
	if err != nil {
		return nil, err
	}

	return &model.ChatSummary{
		Chat:         *chat,
		Participants: participants,
		LastMessage:  last,
		UnreadCount:  unread,
	}, nil
}

// overlayPresence 用 Redis 在线状态覆盖成员状态，缓存未命中保留数据库值
// presence 缓存是可选依赖，未配置时直接用数据库里的状态
func (s *DirectoryService) overlayPresence(ctx context.Context, summaries []*model.ChatSummary) {
	if s.presenceRepo == nil {
		return
	}
	idSet := make(map[int64]struct{})
	for _, summary := range summaries {
		for _, p := range summary.Participants {
			idSet[p.ID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	statuses, err := s.presenceRepo.GetStatuses(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to load presence cache", "error", err)
		return
	}

	for _, summary := range summaries {
		for _, p := range summary.Participants {
			if status, ok := statuses[p.ID]; ok {
				p.Status = status
			}
		}
	}
}

// dedupeWith 去重并保证 extra 在结果中
func dedupeWith(ids []int64, extra int64) []int64 {
	seen := map[int64]struct{}{extra: {}}
	result := []int64{extra}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
