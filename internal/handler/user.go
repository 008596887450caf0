package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saiquwi/Support-chat/internal/middleware"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/service"
	"github.com/saiquwi/Support-chat/pkg/response"
)

// UserHandler 用户处理器
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 获取当前用户资料
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser 按 ID 获取用户
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, response.CodeInvalidParams)
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, user)
}

// Search 搜索用户
// GET /api/v1/users/search?keyword=xxx
func (h *UserHandler) Search(c *gin.Context) {
	keyword := c.Query("keyword")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	users, err := h.userService.Search(c.Request.Context(), keyword, limit)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"users": users})
}

// UpdateStatusRequest 更新状态请求
type UpdateStatusRequest struct {
	Status model.UserStatus `json:"status" binding:"required"`
}

// UpdateStatus 更新在线状态
// PUT /api/v1/users/me/status
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, response.CodeInvalidParams, err.Error())
		return
	}

	user, err := h.userService.UpdateStatus(c.Request.Context(), userID, req.Status)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, user)
}

// ListSupportAgents 客服列表
// GET /api/v1/users/support-agents
func (h *UserHandler) ListSupportAgents(c *gin.Context) {
	agents, err := h.userService.ListSupportAgents(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"agents": agents})
}
