package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saiquwi/Support-chat/internal/model"
)

const (
	// presencePrefix 在线状态前缀: user:presence:{user_id} -> status
	presencePrefix = "user:presence:"
	// presenceTTL 状态过期时间：超时未续约视为离线
	presenceTTL = 5 * time.Minute
)

// PresenceRepository 在线状态缓存
// Postgres 的 users.status 是权威数据，这里只是读加速；
// 未命中时回退到数据库值
type PresenceRepository struct {
	rdb *redis.Client
}

// NewPresenceRepository 创建在线状态缓存
func NewPresenceRepository(rdb *redis.Client) *PresenceRepository {
	return &PresenceRepository{rdb: rdb}
}

func buildPresenceKey(userID int64) string {
	return fmt.Sprintf("%s%d", presencePrefix, userID)
}

// SetStatus 写入用户状态
func (r *PresenceRepository) SetStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	return r.rdb.Set(ctx, buildPresenceKey(userID), string(status), presenceTTL).Err()
}

// GetStatus 读取单个用户状态，未命中返回空串
func (r *PresenceRepository) GetStatus(ctx context.Context, userID int64) (model.UserStatus, error) {
	v, err := r.rdb.Get(ctx, buildPresenceKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return model.UserStatus(v), nil
}

// GetStatuses Pipeline 批量读取用户状态
// 返回 map 只包含缓存命中的用户
func (r *PresenceRepository) GetStatuses(ctx context.Context, userIDs []int64) (map[int64]model.UserStatus, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Get(ctx, buildPresenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	statuses := make(map[int64]model.UserStatus, len(userIDs))
	for i, cmd := range cmds {
		v, err := cmd.Result()
		if err != nil {
			continue
		}
		statuses[userIDs[i]] = model.UserStatus(v)
	}
	return statuses, nil
}

// Clear 删除用户状态（登出时）
func (r *PresenceRepository) Clear(ctx context.Context, userID int64) error {
	return r.rdb.Del(ctx, buildPresenceKey(userID)).Err()
}
