package service

import (
	"context"
	"log/slog"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
)

// ReadStateService 已读状态引擎
// 消息状态与未读数的唯一变更入口；状态只单调前进 SENT -> DELIVERED -> READ
type ReadStateService struct {
	messageRepo     *repository.MessageRepository
	participantRepo *repository.ParticipantRepository
	router          *RouterService
	logger          *slog.Logger
}

// NewReadStateService 创建已读状态引擎
func NewReadStateService(
	messageRepo *repository.MessageRepository,
	participantRepo *repository.ParticipantRepository,
	router *RouterService,
) *ReadStateService {
	return &ReadStateService{
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		router:          router,
		logger:          slog.Default(),
	}
}

// MarkRead 把一批消息标记为已读，返回实际变更的消息
// 规则：
//   - viewer 必须是每条消息所在会话的活跃成员，否则整体 AccessDenied
//   - viewer 自己发的消息被静默跳过（不能"读"自己的消息）
//   - 已 READ 的消息保持不变，重复调用幂等
//
// 数据库层是 compare-and-set，并发重叠调用收敛到单一 read_at
func (s *ReadStateService) MarkRead(ctx context.Context, messageIDs []int64, viewerID int64) ([]*model.Message, error) {
	if len(messageIDs) == 0 {
		return nil, apperrors.ErrInvalidParams
	}

	// 先做准入检查，任何会话不可访问则整体失败，不产生部分写入
	checked := make(map[int64]bool)
	for _, id := range messageIDs {
		msg, err := s.messageRepo.GetByID(ctx, id)
		if err != nil {
			// 不存在的消息 ID 跳过，剩余消息照常处理
			continue
		}
		if checked[msg.ChatID] {
			continue
		}
		ok, err := s.participantRepo.IsActiveMember(ctx, msg.ChatID, viewerID)
		if err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		if !ok {
			return nil, apperrors.ErrAccessDenied
		}
		checked[msg.ChatID] = true
	}

	updated, err := s.messageRepo.MarkRead(ctx, messageIDs, viewerID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	s.logger.Debug("Messages marked read", "viewerId", viewerID, "requested", len(messageIDs), "updated", len(updated))

	s.router.DispatchStatusChanged(updated)
	return updated, nil
}

// UnreadCountFor 计算 viewer 在会话中的未读数
// viewer 必须是会话的活跃成员，否则 AccessDenied；
// 每次调用都从账本新算，给某个接收者算出的值绝不能复用给另一个接收者
func (s *ReadStateService) UnreadCountFor(ctx context.Context, chatID, viewerID int64) (int, error) {
	ok, err := s.participantRepo.IsActiveMember(ctx, chatID, viewerID)
	if err != nil {
		return 0, apperrors.ErrDBError.Wrap(err)
	}
	if !ok {
		return 0, apperrors.ErrAccessDenied
	}

	count, err := s.messageRepo.CountUnread(ctx, chatID, viewerID)
	if err != nil {
		return 0, apperrors.ErrDBError.Wrap(err)
	}
	return count, nil
}

// MarkDelivered 消息投递到在线通道时 SENT -> DELIVERED
// 已经 DELIVERED/READ 的消息不回退，返回是否发生了转换
func (s *ReadStateService) MarkDelivered(ctx context.Context, messageID int64) (bool, error) {
	changed, err := s.messageRepo.MarkDelivered(ctx, messageID)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	if changed {
		if msg, err := s.messageRepo.GetByID(ctx, messageID); err == nil {
			s.router.DispatchStatusChanged([]*model.Message{msg})
		}
	}
	return changed, nil
}

// UnreadMessages 获取 viewer 全部活跃会话中的未读消息
func (s *ReadStateService) UnreadMessages(ctx context.Context, viewerID int64) ([]*model.Message, error) {
	messages, err := s.messageRepo.ListUnread(ctx, viewerID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return messages, nil
}
