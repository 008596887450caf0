package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiquwi/Support-chat/internal/model"
)

// ParticipantRepository 会话成员数据访问
type ParticipantRepository struct {
	db *pgxpool.Pool
}

// NewParticipantRepository 创建成员仓库
func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// IsActiveMember 判断用户是否为会话的活跃成员
// 所有会话级读写操作的前置检查
func (r *ParticipantRepository) IsActiveMember(ctx context.Context, chatID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants
			WHERE chat_id = $1 AND user_id = $2 AND is_active
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, chatID, userID).Scan(&exists)
	return exists, err
}

// Add 添加活跃成员，已存在活跃关系时为幂等空操作
func (r *ParticipantRepository) Add(ctx context.Context, id, chatID, userID int64) error {
	query := `
		INSERT INTO chat_participants (id, chat_id, user_id, is_active, joined_at)
		SELECT $1, $2, $3, TRUE, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM chat_participants
			WHERE chat_id = $2 AND user_id = $3 AND is_active
		)
	`
	_, err := r.db.Exec(ctx, query, id, chatID, userID)
	return err
}

// ListActiveParticipants 获取会话全部活跃成员（含用户信息）
func (r *ParticipantRepository) ListActiveParticipants(ctx context.Context, chatID int64) ([]*model.User, error) {
	query := `
		SELECT ` + qualifiedUserColumns + `
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = $1 AND cp.is_active
		ORDER BY cp.joined_at
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListActiveChatIDs 获取用户所有活跃会话的 ID（会话本身也必须活跃）
func (r *ParticipantRepository) ListActiveChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT cp.chat_id
		FROM chat_participants cp
		JOIN chats c ON c.id = cp.chat_id
		WHERE cp.user_id = $1 AND cp.is_active AND c.is_active
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const qualifiedUserColumns = `u.id, u.username, u.email, u.password_hash, u.role, u.status, u.avatar_url, u.last_seen, u.created_at, u.updated_at, u.is_active`
