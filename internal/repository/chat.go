package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiquwi/Support-chat/internal/model"
)

// ChatRepository 会话数据访问
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository 创建会话仓库
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	c := &model.Chat{}
	var title *string
	err := row.Scan(
		&c.ID,
		&title,
		&c.Type,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if title != nil {
		c.Title = *title
	}
	return c, nil
}

// Create 创建会话
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	query := `
		INSERT INTO chats (id, title, type, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, TRUE, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, chat.ID, chat.Title, chat.Type).
		Scan(&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return err
	}
	chat.Active = true
	return nil
}

// GetByID 获取活跃会话，已失活的会话对所有操作不可见
func (r *ChatRepository) GetByID(ctx context.Context, id int64) (*model.Chat, error) {
	query := `SELECT id, title, type, is_active, created_at, updated_at FROM chats WHERE id = $1 AND is_active`
	return scanChat(r.db.QueryRow(ctx, query, id))
}

// Touch 刷新会话更新时间（有新消息时）
func (r *ChatRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// Deactivate 软失活会话，并级联失活全部成员关系
// 历史消息保留，单事务保证不会出现半失活状态
func (r *ChatRepository) Deactivate(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE chats SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_participants SET is_active = FALSE, left_at = NOW()
		WHERE chat_id = $1 AND is_active
	`, id)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
