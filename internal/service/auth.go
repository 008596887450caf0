package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/saiquwi/Support-chat/internal/errors"
	"github.com/saiquwi/Support-chat/internal/jwt"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/snowflake"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    int64       `json:"expiresAt"`
	User         *model.User `json:"user"`
}

// AuthService 认证服务
type AuthService struct {
	userRepo     *repository.UserRepository
	tokenRepo    *repository.TokenRepository
	presenceRepo *repository.PresenceRepository
	jwtService   *jwt.Service
	snowflake    *snowflake.Node
	logger       *slog.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	userRepo *repository.UserRepository,
	tokenRepo *repository.TokenRepository,
	presenceRepo *repository.PresenceRepository,
	jwtService *jwt.Service,
	sf *snowflake.Node,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		presenceRepo: presenceRepo,
		jwtService:   jwtService,
		snowflake:    sf,
		logger:       slog.Default(),
	}
}

// Register 注册新用户，默认角色 CLIENT
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperrors.ErrUsernameExists
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.ErrServerError.Wrap(err)
	}

	user := &model.User{
		ID:           s.snowflake.Generate().Int64(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Role:         model.RoleClient,
		Status:       model.StatusOffline,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	s.logger.Info("User registered", "userId", user.ID, "username", user.Username)

	return s.issueTokens(ctx, user)
}

// Login 校验凭据，置为在线并签发 Token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	// 登录即在线
	user, err = s.userRepo.UpdateStatus(ctx, user.ID, model.StatusOnline)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if err := s.presenceRepo.SetStatus(ctx, user.ID, model.StatusOnline); err != nil {
		s.logger.Warn("Failed to update presence cache", "userId", user.ID, "error", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout 删除 Token 并置为离线
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.tokenRepo.DeleteToken(ctx, userID); err != nil {
		return apperrors.ErrServerError.Wrap(err)
	}
	if _, err := s.userRepo.UpdateStatus(ctx, userID, model.StatusOffline); err != nil {
		s.logger.Warn("Failed to persist offline status", "userId", userID, "error", err)
	}
	if err := s.presenceRepo.Clear(ctx, userID); err != nil {
		s.logger.Warn("Failed to clear presence cache", "userId", userID, "error", err)
	}
	return nil
}

// issueTokens 签发 Token 对并写入 Redis
func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (*AuthResponse, error) {
	pair, err := s.jwtService.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.ErrServerError.Wrap(err)
	}

	info := &repository.UserTokenInfo{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
	if err := s.tokenRepo.SaveToken(ctx, info, pair.AccessToken, s.jwtService.GetAccessExpire()); err != nil {
		return nil, apperrors.ErrServerError.Wrap(err)
	}

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		User:         user,
	}, nil
}
