package bus

import "github.com/saiquwi/Support-chat/internal/model"

// 事件 payload 定义
// 每个 payload 都携带足够的寻址字段（recipientId/chatId/userId）供 predicate 过滤

// NewMessageEvent 新消息事件，每个接收者一份独立 payload
// Chat 是带接收者本人未读数的会话摘要，禁止跨接收者复用
type NewMessageEvent struct {
	Message     *model.Message     `json:"message"`
	Chat        *model.ChatSummary `json:"chat"`
	RecipientID int64              `json:"recipientId,string"`
	ChatID      int64              `json:"chatId,string"`
	SenderID    int64              `json:"senderId,string"`
}

// MessageStatusEvent 消息状态变更事件
type MessageStatusEvent struct {
	Message *model.Message `json:"message"`
	ChatID  int64          `json:"chatId,string"`
	UserID  int64          `json:"userId,string"`
}

// ChatEvent 会话创建/更新事件
type ChatEvent struct {
	Chat   *model.ChatSummary `json:"chat"`
	UserID int64              `json:"userId,string"`
}

// UserStatusEvent 用户状态变更事件（广播，订阅方自行筛选关心的用户）
type UserStatusEvent struct {
	User *model.User `json:"user"`
}

// ForRecipient 只接收发给指定用户的新消息
func ForRecipient(userID int64) Predicate {
	return func(payload interface{}) bool {
		e, ok := payload.(*NewMessageEvent)
		return ok && e.RecipientID == userID
	}
}

// ForChatStatus 只接收指定会话的消息状态变更
func ForChatStatus(chatID int64) Predicate {
	return func(payload interface{}) bool {
		e, ok := payload.(*MessageStatusEvent)
		return ok && e.ChatID == chatID
	}
}

// ForChatMember 接收发给指定用户、且会话属于其活跃会话集的状态变更
// 网关用：一条连接订阅用户全部会话的状态流
func ForChatMember(userID int64, memberOf func(chatID int64) bool) Predicate {
	return func(payload interface{}) bool {
		e, ok := payload.(*MessageStatusEvent)
		return ok && e.UserID == userID && memberOf(e.ChatID)
	}
}

// ForUser 只接收发给指定用户的会话事件
func ForUser(userID int64) Predicate {
	return func(payload interface{}) bool {
		e, ok := payload.(*ChatEvent)
		return ok && e.UserID == userID
	}
}
