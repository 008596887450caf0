package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleClient  UserRole = "CLIENT"  // 客户
	RoleSupport UserRole = "SUPPORT" // 客服
	RoleAdmin   UserRole = "ADMIN"   // 管理员
)

// Valid 检查角色是否合法
func (r UserRole) Valid() bool {
	switch r {
	case RoleClient, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// CanViewSupportChats 是否可以查看客服会话列表
func (r UserRole) CanViewSupportChats() bool {
	return r == RoleSupport || r == RoleAdmin
}

// UserStatus 用户在线状态
type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
	StatusAway    UserStatus = "AWAY"
)

// Valid 检查状态是否合法
func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway:
		return true
	}
	return false
}

// User 用户模型
// 密码哈希不参与 JSON 序列化
type User struct {
	ID           int64      `json:"id,string" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	Status       UserStatus `json:"status" db:"status"`
	AvatarURL    string     `json:"avatarUrl,omitempty" db:"avatar_url"`
	LastSeen     *time.Time `json:"lastSeen,omitempty" db:"last_seen"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
	Active       bool       `json:"-" db:"is_active"`
}
