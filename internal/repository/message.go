package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiquwi/Support-chat/internal/model"
)

// MessageRepository 消息数据访问（追加型账本）
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `m.id, m.chat_id, m.sender_id, m.content, m.status, m.read_at, m.created_at,
	m.is_edited, m.edited_at, m.is_deleted, m.deleted_at,
	u.id, u.username, u.email, u.password_hash, u.role, u.status, u.avatar_url, u.last_seen, u.created_at, u.updated_at, u.is_active`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	u := &model.User{}
	err := row.Scan(
		&m.ID,
		&m.ChatID,
		&m.SenderID,
		&m.Content,
		&m.Status,
		&m.ReadAt,
		&m.CreatedAt,
		&m.IsEdited,
		&m.EditedAt,
		&m.IsDeleted,
		&m.DeletedAt,
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Status,
		&u.AvatarURL,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	m.Sender = u
	return m, nil
}

// Insert 追加消息，created_at 由数据库在提交时分配
// 同一毫秒内的并发写入通过雪花 ID 决出稳定全序
func (r *MessageRepository) Insert(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		msg.Content,
		msg.Status,
	).Scan(&msg.CreatedAt)
}

// ListByChat 按 (created_at, id) 升序返回会话消息，limit <= 0 表示不限条数
func (r *MessageRepository) ListByChat(ctx context.Context, chatID int64, limit int) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at, m.id
		LIMIT NULLIF($2, 0)
	`
	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetByID 通过 ID 获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1
	`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

// LastMessage 获取会话最新一条消息，无消息时返回 nil
func (r *MessageRepository) LastMessage(ctx context.Context, chatID int64) (*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, chatID))
	if errors.Is(err, ErrMessageNotFound) {
		return nil, nil
	}
	return msg, err
}

// CountUnread 统计 viewer 在会话中的未读数
// 未读 = 状态为 SENT/DELIVERED 且发送者不是 viewer 本人
// 每次都从账本新算，禁止跨用户复用结果
func (r *MessageRepository) CountUnread(ctx context.Context, chatID, viewerID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1 AND sender_id <> $2 AND status IN ($3, $4)
	`
	var count int
	err := r.db.QueryRow(ctx, query, chatID, viewerID, model.MessageSent, model.MessageDelivered).Scan(&count)
	return count, err
}

// MarkRead 把一批消息置为已读，返回实际变更的消息
// compare-and-set：已 READ 的行不重写 read_at，viewer 自己发的消息被跳过，
// 并发重复调用收敛到同一终态
func (r *MessageRepository) MarkRead(ctx context.Context, ids []int64, viewerID int64) ([]*model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		WITH updated AS (
			UPDATE messages SET status = $3, read_at = NOW()
			WHERE id = ANY($1) AND sender_id <> $2 AND status <> $3
			RETURNING *
		)
		SELECT ` + messageColumns + `
		FROM updated m
		JOIN users u ON u.id = m.sender_id
	`
	rows, err := r.db.Query(ctx, query, ids, viewerID, model.MessageRead)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkDelivered 消息送达在线通道时 SENT -> DELIVERED
// 状态只前进：已 DELIVERED/READ 的行不动
func (r *MessageRepository) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE messages SET status = $2 WHERE id = $1 AND status = $3`
	tag, err := r.db.Exec(ctx, query, id, model.MessageDelivered, model.MessageSent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUnread 获取 viewer 在所有活跃会话中的未读消息，按时间倒序
func (r *MessageRepository) ListUnread(ctx context.Context, viewerID int64) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		JOIN chats c ON c.id = m.chat_id AND c.is_active
		JOIN chat_participants cp ON cp.chat_id = m.chat_id AND cp.user_id = $1 AND cp.is_active
		WHERE m.sender_id <> $1 AND m.status IN ($2, $3)
		ORDER BY m.created_at DESC, m.id DESC
	`
	rows, err := r.db.Query(ctx, query, viewerID, model.MessageSent, model.MessageDelivered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
