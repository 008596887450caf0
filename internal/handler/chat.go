package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saiquwi/Support-chat/internal/middleware"
	"github.com/saiquwi/Support-chat/internal/service"
	"github.com/saiquwi/Support-chat/pkg/response"
)

// ChatHandler 会话与消息处理器
type ChatHandler struct {
	directory *service.DirectoryService
	messages  *service.MessageService
	readState *service.ReadStateService
}

// NewChatHandler 创建会话处理器
func NewChatHandler(
	directory *service.DirectoryService,
	messages *service.MessageService,
	readState *service.ReadStateService,
) *ChatHandler {
	return &ChatHandler{
		directory: directory,
		messages:  messages,
		readState: readState,
	}
}

// ListChats 当前用户的会话列表
// GET /api/v1/chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := middleware.GetUserID(c)

	chats, err := h.directory.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"chats": chats})
}

// createChatRequest 前端以字符串传 int64 ID，避免 JS 精度丢失
type createChatRequest struct {
	Title          string   `json:"title"`
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

// CreateChat 创建会话
// POST /api/v1/chats
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	participantIDs, err := parseIDs(req.ParticipantIDs)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	chat, err := h.directory.CreateChat(c.Request.Context(), userID, &service.CreateChatRequest{
		Title:          req.Title,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, chat)
}

type createSupportChatRequest struct {
	AgentID string `json:"agentId"`
}

// CreateSupportChat 客户发起客服会话
// POST /api/v1/chats/support
func (h *ChatHandler) CreateSupportChat(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createSupportChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	var agentID int64
	if req.AgentID != "" {
		var err error
		agentID, err = strconv.ParseInt(req.AgentID, 10, 64)
		if err != nil {
			response.Error(c, response.CodeInvalidParams)
			return
		}
	}

	chat, err := h.directory.CreateSupportChat(c.Request.Context(), userID, agentID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, chat)
}

// ListSupportChats 客服视角的客服会话列表
// GET /api/v1/chats/support
func (h *ChatHandler) ListSupportChats(c *gin.Context) {
	userID := middleware.GetUserID(c)

	chats, err := h.directory.SupportChatsForViewer(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"chats": chats})
}

// GetChat 会话详情
// GET /api/v1/chats/:id
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	detail, err := h.directory.GetDetail(c.Request.Context(), chatID, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, detail)
}

// DeleteChat 软删除会话
// DELETE /api/v1/chats/:id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	if err := h.directory.DeleteChat(c.Request.Context(), chatID, userID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListMessages 会话消息列表
// GET /api/v1/chats/:id/messages?limit=50
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.messages.ListMessages(c.Request.Context(), chatID, userID, limit)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage 发送消息
// POST /api/v1/chats/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), chatID, userID, req.Content)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, msg)
}

// GetUnreadCount 观察者在会话中的未读数
// GET /api/v1/chats/:id/unread-count
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	count, err := h.readState.UnreadCountFor(c.Request.Context(), chatID, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"unreadCount": count})
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
}

// MarkRead 批量标记消息已读
// POST /api/v1/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	messageIDs, err := parseIDs(req.MessageIDs)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	updated, err := h.readState.MarkRead(c.Request.Context(), messageIDs, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{
		"updatedCount": len(updated),
		"messages":     updated,
	})
}

// ListUnreadMessages 全部活跃会话的未读消息
// GET /api/v1/messages/unread
func (h *ChatHandler) ListUnreadMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messages, err := h.readState.UnreadMessages(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// parseIDs 把字符串 ID 列表解析为 int64
func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
