package model

import "time"

// ChatType 会话类型
type ChatType string

const (
	ChatDirect  ChatType = "DIRECT"  // 两人私聊
	ChatGroup   ChatType = "GROUP"   // 群聊
	ChatSupport ChatType = "SUPPORT" // 客服会话
)

// Valid 检查会话类型是否合法
func (t ChatType) Valid() bool {
	switch t {
	case ChatDirect, ChatGroup, ChatSupport:
		return true
	}
	return false
}

// Chat 会话模型
// 删除是软失活：is_active 置 false，历史保留
type Chat struct {
	ID        int64     `json:"id,string" db:"id"`
	Title     string    `json:"title,omitempty" db:"title"`
	Type      ChatType  `json:"type" db:"type"`
	Active    bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ChatParticipant 会话成员关系
// 同一 (chat, user) 历史上可能有多行，但同时最多一行 is_active
type ChatParticipant struct {
	ID       int64      `json:"id,string" db:"id"`
	ChatID   int64      `json:"chatId,string" db:"chat_id"`
	UserID   int64      `json:"userId,string" db:"user_id"`
	Active   bool       `json:"isActive" db:"is_active"`
	JoinedAt time.Time  `json:"joinedAt" db:"joined_at"`
	LeftAt   *time.Time `json:"leftAt,omitempty" db:"left_at"`
}

// ChatSummary 会话列表条目
// UnreadCount 永远是针对查询者本人计算的，不可跨用户复用
type ChatSummary struct {
	Chat
	Participants []*User  `json:"participants"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
	UnreadCount  int      `json:"unreadCount"`
}

// ChatDetail 会话详情（完整消息历史）
type ChatDetail struct {
	Chat
	Participants []*User    `json:"participants"`
	Messages     []*Message `json:"messages"`
	UnreadCount  int        `json:"unreadCount"`
}
