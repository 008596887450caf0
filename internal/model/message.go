package model

import "time"

// MessageStatus 消息状态
type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"      // 已落库
	MessageDelivered MessageStatus = "DELIVERED" // 已投递到在线通道
	MessageRead      MessageStatus = "READ"      // 已读
)

// Valid 检查消息状态是否合法
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageSent, MessageDelivered, MessageRead:
		return true
	}
	return false
}

// rank 状态序：SENT < DELIVERED < READ
func (s MessageStatus) rank() int {
	switch s {
	case MessageSent:
		return 0
	case MessageDelivered:
		return 1
	case MessageRead:
		return 2
	}
	return -1
}

// CanTransitionTo 状态只能单调前进，不允许回退
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

// Unread 是否计入未读数（SENT 或 DELIVERED）
func (s MessageStatus) Unread() bool {
	return s == MessageSent || s == MessageDelivered
}

// Message 消息模型
// sender/content/created_at 创建后不可变；status/read_at 只由消息账本变更
type Message struct {
	ID        int64         `json:"id,string" db:"id"`
	ChatID    int64         `json:"chatId,string" db:"chat_id"`
	SenderID  int64         `json:"senderId,string" db:"sender_id"`
	Sender    *User         `json:"sender,omitempty" db:"-"`
	Content   string        `json:"content" db:"content"`
	Status    MessageStatus `json:"status" db:"status"`
	ReadAt    *time.Time    `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	IsEdited  bool          `json:"isEdited" db:"is_edited"`
	EditedAt  *time.Time    `json:"editedAt,omitempty" db:"edited_at"`
	IsDeleted bool          `json:"isDeleted" db:"is_deleted"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty" db:"deleted_at"`
}
