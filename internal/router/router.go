package router

import (
	"github.com/gin-gonic/gin"

	"github.com/saiquwi/Support-chat/internal/config"
	"github.com/saiquwi/Support-chat/internal/gateway"
	"github.com/saiquwi/Support-chat/internal/handler"
	"github.com/saiquwi/Support-chat/internal/middleware"
	"github.com/saiquwi/Support-chat/internal/repository"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	tokenRepo *repository.TokenRepository,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	chatHandler *handler.ChatHandler,
	gw *gateway.Gateway,
) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	// 订阅网关（token 走 query 参数，自行认证）
	r.GET("/ws", gw.HandleWS)

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证接口（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// 需要认证的接口
		authenticated := v1.Group("")
		authenticated.Use(middleware.TokenAuth(tokenRepo))
		{
			// 登出
			authenticated.POST("/auth/logout", authHandler.Logout)

			// 用户接口
			users := authenticated.Group("/users")
			{
				users.GET("/me", userHandler.GetProfile)
				users.PUT("/me/status", userHandler.UpdateStatus)
				users.GET("/search", userHandler.Search)
				users.GET("/support-agents", userHandler.ListSupportAgents)
				users.GET("/:id", userHandler.GetUser)
			}

			// 会话接口
			chats := authenticated.Group("/chats")
			{
				chats.GET("", chatHandler.ListChats)
				chats.POST("", chatHandler.CreateChat)
				chats.GET("/support", chatHandler.ListSupportChats)
				chats.POST("/support", chatHandler.CreateSupportChat)
				chats.GET("/:id", chatHandler.GetChat)
				chats.DELETE("/:id", chatHandler.DeleteChat)
				chats.GET("/:id/messages", chatHandler.ListMessages)
				chats.POST("/:id/messages", chatHandler.SendMessage)
				chats.GET("/:id/unread-count", chatHandler.GetUnreadCount)
			}

			// 消息接口
			messages := authenticated.Group("/messages")
			{
				messages.POST("/read", chatHandler.MarkRead)
				messages.GET("/unread", chatHandler.ListUnreadMessages)
			}
		}
	}

	return r
}
