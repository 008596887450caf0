package service

import (
	"context"
	"log/slog"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/snowflake"
)

// MembershipService 会话成员服务
// 所有会话级操作的准入控制：只有活跃成员可以读写会话
type MembershipService struct {
	participantRepo *repository.ParticipantRepository
	snowflake       *snowflake.Node
	logger          *slog.Logger
}

// NewMembershipService 创建成员服务
func NewMembershipService(participantRepo *repository.ParticipantRepository, sf *snowflake.Node) *MembershipService {
	return &MembershipService{
		participantRepo: participantRepo,
		snowflake:       sf,
		logger:          slog.Default(),
	}
}

// IsActiveMember 判断用户是否为会话活跃成员
func (s *MembershipService) IsActiveMember(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, err := s.participantRepo.IsActiveMember(ctx, chatID, userID)
	if err != nil {
		return false, apperrors.ErrDBError.Wrap(err)
	}
	return ok, nil
}

// Require 准入检查：非活跃成员直接返回 AccessDenied
func (s *MembershipService) Require(ctx context.Context, chatID, userID int64) error {
	ok, err := s.IsActiveMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAccessDenied
	}
	return nil
}

// AddParticipant 添加活跃成员，重复添加为幂等空操作
func (s *MembershipService) AddParticipant(ctx context.Context, chatID, userID int64) error {
	id := s.snowflake.Generate().Int64()
	if err := s.participantRepo.Add(ctx, id, chatID, userID); err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// ListActiveParticipants 获取会话的全部活跃成员
func (s *MembershipService) ListActiveParticipants(ctx context.Context, chatID int64) ([]*model.User, error) {
	users, err := s.participantRepo.ListActiveParticipants(ctx, chatID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return users, nil
}

// ListActiveChatIDs 获取用户全部活跃会话 ID
func (s *MembershipService) ListActiveChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.participantRepo.ListActiveChatIDs(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return ids, nil
}
