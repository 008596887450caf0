package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saiquwi/Support-chat/internal/model"
)

const (
	// tokenUserPrefix 用户Token前缀: user:token:{user_id} -> accessToken
	tokenUserPrefix = "user:token:"
	// tokenInfoPrefix Token信息前缀: token:info:{accessToken} -> userInfo JSON
	tokenInfoPrefix = "token:info:"
)

var ErrTokenNotFound = errors.New("token not found")

// UserTokenInfo 存储在Redis中的用户信息
type UserTokenInfo struct {
	UserID   int64          `json:"user_id"`
	Username string         `json:"username"`
	Role     model.UserRole `json:"role"`
}

// TokenRepository Token 数据访问层
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository 创建 Token Repository
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

// buildUserTokenKey 构建用户Token的Key: user:token:{user_id}
func buildUserTokenKey(userID int64) string {
	return fmt.Sprintf("%s%d", tokenUserPrefix, userID)
}

// buildTokenInfoKey 构建Token信息的Key: token:info:{accessToken}
func buildTokenInfoKey(accessToken string) string {
	return tokenInfoPrefix + accessToken
}

// SaveToken 保存Token到Redis
// 1. user:token:{user_id} -> accessToken（登录顶掉旧 token）
// 2. token:info:{accessToken} -> userInfo JSON
func (r *TokenRepository) SaveToken(ctx context.Context, userInfo *UserTokenInfo, accessToken string, expiration time.Duration) error {
	userTokenKey := buildUserTokenKey(userInfo.UserID)
	tokenInfoKey := buildTokenInfoKey(accessToken)

	userInfoJSON, err := json.Marshal(userInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal user info: %w", err)
	}

	// 先删除旧 token 的信息，避免旧 token 继续可用
	oldToken, err := r.rdb.Get(ctx, userTokenKey).Result()
	if err == nil && oldToken != "" && oldToken != accessToken {
		r.rdb.Del(ctx, buildTokenInfoKey(oldToken))
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, userTokenKey, accessToken, expiration)
	pipe.Set(ctx, tokenInfoKey, userInfoJSON, expiration)
	_, err = pipe.Exec(ctx)
	return err
}

// GetUserByToken 通过 accessToken 获取用户信息
func (r *TokenRepository) GetUserByToken(ctx context.Context, accessToken string) (*UserTokenInfo, error) {
	data, err := r.rdb.Get(ctx, buildTokenInfoKey(accessToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	var info UserTokenInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteToken 删除用户 Token（登出）
func (r *TokenRepository) DeleteToken(ctx context.Context, userID int64) error {
	userTokenKey := buildUserTokenKey(userID)

	accessToken, err := r.rdb.Get(ctx, userTokenKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, userTokenKey)
	if accessToken != "" {
		pipe.Del(ctx, buildTokenInfoKey(accessToken))
	}
	_, err = pipe.Exec(ctx)
	return err
}
