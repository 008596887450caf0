package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiquwi/Support-chat/internal/model"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

const userColumns = `id, username, email, password_hash, role, status, avatar_url, last_seen, created_at, updated_at, is_active`

// UserRepository 用户数据访问
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
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
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, status, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.AvatarURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetByID 通过 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByUsername 通过用户名获取用户
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND is_active`
	return scanUser(r.db.QueryRow(ctx, query, username))
}

// GetByEmail 通过邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// GetByIDs 批量解析用户，不存在的 ID 会被静默丢弃
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) AND is_active`
	rows, err := r.db.Query(ctx, query, ids)
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

// UpdateStatus 更新用户状态，同时刷新 last_seen
func (r *UserRepository) UpdateStatus(ctx context.Context, userID int64, status model.UserStatus) (*model.User, error) {
	query := `
		UPDATE users SET status = $2, last_seen = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, userID, status))
}

// UpdateLastSeen 刷新用户最后活跃时间
func (r *UserRepository) UpdateLastSeen(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_seen = NOW() WHERE id = $1`, userID)
	return err
}

// FindAvailableSupportAgent 查找最近活跃的在线客服
func (r *UserRepository) FindAvailableSupportAgent(ctx context.Context) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND status = $2 AND is_active
		ORDER BY last_seen DESC NULLS LAST
		LIMIT 1
	`
	return scanUser(r.db.QueryRow(ctx, query, model.RoleSupport, model.StatusOnline))
}

// GetSupportAgent 获取指定客服（必须是 SUPPORT 角色）
func (r *UserRepository) GetSupportAgent(ctx context.Context, agentID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND role = $2 AND is_active`
	return scanUser(r.db.QueryRow(ctx, query, agentID, model.RoleSupport))
}

// ListSupportAgents 获取所有客服，在线的排前面
func (r *UserRepository) ListSupportAgents(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND is_active
		ORDER BY status DESC, last_seen DESC NULLS LAST
	`
	rows, err := r.db.Query(ctx, query, model.RoleSupport)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, u)
	}
	return agents, rows.Err()
}

// Search 按用户名/邮箱模糊搜索
func (r *UserRepository) Search(ctx context.Context, keyword string, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (username ILIKE $1 OR email ILIKE $1) AND is_active
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, "%"+keyword+"%", limit)
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
