package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
)

// DefaultSearchLimit 用户搜索默认条数
const DefaultSearchLimit = 20

// UserService 用户资料与在线状态
type UserService struct {
	userRepo     *repository.UserRepository
	presenceRepo *repository.PresenceRepository
	router       *RouterService
	logger       *slog.Logger
}

// NewUserService 创建用户服务
func NewUserService(
	userRepo *repository.UserRepository,
	presenceRepo *repository.PresenceRepository,
	router *RouterService,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		router:       router,
		logger:       slog.Default(),
	}
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	// 缓存未命中返回空串，此时保留数据库里的权威状态
	if status, err := s.presenceRepo.GetStatus(ctx, user.ID); err == nil && status != "" {
		user.Status = status
	}
	return user, nil
}

// Search 按用户名或邮箱模糊搜索
func (s *UserService) Search(ctx context.Context, keyword string, limit int) ([]*model.User, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperrors.ErrInvalidParams
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	users, err := s.userRepo.Search(ctx, keyword, limit)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return users, nil
}

// UpdateStatus 更新在线状态
// 数据库是权威来源，缓存写穿失败只记日志；变更后广播给所有订阅者
func (s *UserService) UpdateStatus(ctx context.Context, userID int64, status model.UserStatus) (*model.User, error) {
	if !status.Valid() {
		return nil, apperrors.ErrInvalidParams
	}

	user, err := s.userRepo.UpdateStatus(ctx, userID, status)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	if err := s.presenceRepo.SetStatus(ctx, userID, status); err != nil {
		s.logger.Warn("Failed to cache user presence", "userId", userID, "error", err)
	}

	s.router.BroadcastUserStatus(user)
	return user, nil
}

// ListSupportAgents 客服列表，在线状态用缓存覆盖
func (s *UserService) ListSupportAgents(ctx context.Context) ([]*model.User, error) {
	agents, err := s.userRepo.ListSupportAgents(ctx)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	ids := make([]int64, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	if statuses, err := s.presenceRepo.GetStatuses(ctx, ids); err == nil {
		for _, a := range agents {
			if status, ok := statuses[a.ID]; ok {
				a.Status = status
			}
		}
	}
	return agents, nil
}
