package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/pkg/response"
)

// TokenAuth 认证中间件
// 令牌有效性以 Redis 令牌库为准：登出即吊销，不用等 JWT 过期
func TokenAuth(tokenRepo *repository.TokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c)
			c.Abort()
			return
		}

		userInfo, err := tokenRepo.GetUserByToken(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user_id", userInfo.UserID)
		c.Set("user_role", userInfo.Role)
		c.Next()
	}
}

// extractToken 从 Authorization header 提取 token
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// GetUserID 从 context 获取 user_id
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	return userID.(int64)
}

// GetUserRole 从 context 获取 user_role
func GetUserRole(c *gin.Context) model.UserRole {
	role, exists := c.Get("user_role")
	if !exists {
		return ""
	}
	return role.(model.UserRole)
}
