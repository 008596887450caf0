package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiquwi/Support-chat/internal/bus"
	"github.com/saiquwi/Support-chat/internal/jwt"
	"github.com/saiquwi/Support-chat/internal/middleware"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/service"
	"github.com/saiquwi/Support-chat/internal/snowflake"
	"github.com/saiquwi/Support-chat/internal/workerpool"
	"github.com/saiquwi/Support-chat/pkg/response"
)

// 测试配置 - 使用环境变量或默认值
var (
	testDBHost     = getEnv("POSTGRES_HOST", "localhost")
	testDBPort     = getEnv("POSTGRES_PORT", "5432")
	testDBUser     = getEnv("POSTGRES_USER", "postgres")
	testDBPassword = getEnv("POSTGRES_PASSWORD", "postgres")
	testDBName     = getEnv("POSTGRES_DB", "support_chat_test")

	testRedisHost = getEnv("REDIS_HOST", "localhost")
	testRedisPort = getEnv("REDIS_PORT", "6379")
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// APIResponse 用于解析响应体
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testDeps struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	router      *gin.Engine
	authService *service.AuthService

	usernames []string
	chatIDs   []int64
}

func setupIntegrationTest(t *testing.T) *testDeps {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, testDBHost, testDBPort, testDBName)
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("跳过集成测试: 无法连接数据库: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		t.Skipf("跳过集成测试: 数据库 ping 失败: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", testRedisHost, testRedisPort),
		DB:   15,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		t.Skipf("跳过集成测试: 无法连接 Redis: %v", err)
	}

	jwtService := jwt.NewService("test-secret-key", 24*time.Hour, 7*24*time.Hour)
	sfNode, err := snowflake.NewNode(1)
	require.NoError(t, err)

	hub := bus.New(64, nil)
	pool := workerpool.New(2, 64, nil)

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)
	presenceRepo := repository.NewPresenceRepository(redisClient)

	routerSvc := service.NewRouterService(hub, pool, chatRepo, participantRepo, messageRepo)
	membership := service.NewMembershipService(participantRepo, sfNode)
	authService := service.NewAuthService(userRepo, tokenRepo, presenceRepo, jwtService, sfNode)
	userService := service.NewUserService(userRepo, presenceRepo, routerSvc)
	messageService := service.NewMessageService(messageRepo, chatRepo, membership, routerSvc, sfNode)
	readState := service.NewReadStateService(messageRepo, participantRepo, routerSvc)
	directory := service.NewDirectoryService(
		chatRepo, participantRepo, messageRepo, userRepo, presenceRepo,
		membership, routerSvc, sfNode,
	)

	authHandler := NewAuthHandler(authService)
	userHandler := NewUserHandler(userService)
	chatHandler := NewChatHandler(directory, messageService, readState)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/auth/register", authHandler.Register)
	r.POST("/api/v1/auth/login", authHandler.Login)

	authed := r.Group("/api/v1")
	authed.Use(middleware.TokenAuth(tokenRepo))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.PUT("/users/me/status", userHandler.UpdateStatus)
		authed.GET("/users/:id", userHandler.GetUser)
		authed.GET("/chats", chatHandler.ListChats)
		authed.POST("/chats", chatHandler.CreateChat)
		authed.GET("/chats/:id", chatHandler.GetChat)
		authed.POST("/chats/:id/messages", chatHandler.SendMessage)
		authed.GET("/chats/:id/unread-count", chatHandler.GetUnreadCount)
		authed.POST("/messages/read", chatHandler.MarkRead)
	}

	deps := &testDeps{
		db:          db,
		redisClient: redisClient,
		router:      r,
		authService: authService,
	}
	t.Cleanup(func() {
		deps.teardown(ctx)
		hub.Close()
		pool.Shutdown()
	})
	return deps
}

func (d *testDeps) teardown(ctx context.Context) {
	for _, chatID := range d.chatIDs {
		d.db.Exec(ctx, "DELETE FROM messages WHERE chat_id = $1", chatID)
		d.db.Exec(ctx, "DELETE FROM chat_participants WHERE chat_id = $1", chatID)
		d.db.Exec(ctx, "DELETE FROM chats WHERE id = $1", chatID)
	}
	for _, username := range d.usernames {
		d.db.Exec(ctx, "DELETE FROM users WHERE username = $1", username)
	}
	d.db.Close()
	d.redisClient.Close()
}

// registerUser 注册并登录一个测试用户，返回用户与 access token
func (d *testDeps) registerUser(t *testing.T) (*model.User, string) {
	t.Helper()

	username := fmt.Sprintf("testuser_%d", time.Now().UnixNano())
	d.usernames = append(d.usernames, username)

	resp, err := d.authService.Register(context.Background(), &service.RegisterRequest{
		Username: username,
		Email:    username + "@test.local",
		Password: "password123",
	})
	require.NoError(t, err)
	return resp.User, resp.AccessToken
}

func (d *testDeps) doRequest(t *testing.T, method, path, token string, body interface{}) *APIResponse {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var apiResp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiResp))
	return &apiResp
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	deps := setupIntegrationTest(t)

	username := fmt.Sprintf("testuser_%d", time.Now().UnixNano())
	deps.usernames = append(deps.usernames, username)

	resp := deps.doRequest(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@test.local",
		"password": "password123",
	})
	assert.Equal(t, response.CodeSuccess, resp.Code, "注册应该成功")

	var authData service.AuthResponse
	require.NoError(t, json.Unmarshal(resp.Data, &authData))
	assert.NotEmpty(t, authData.AccessToken)
	assert.NotEmpty(t, authData.RefreshToken)
	assert.Equal(t, model.RoleClient, authData.User.Role, "默认角色应该是 CLIENT")

	// 重复注册同名用户
	dup := deps.doRequest(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    "other" + username + "@test.local",
		"password": "password123",
	})
	assert.Equal(t, response.CodeUsernameExists, dup.Code)

	// 登录
	login := deps.doRequest(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    username + "@test.local",
		"password": "password123",
	})
	assert.Equal(t, response.CodeSuccess, login.Code, "登录应该成功")

	// 密码错误
	bad := deps.doRequest(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    username + "@test.local",
		"password": "wrong-password",
	})
	assert.Equal(t, response.CodeInvalidCredentials, bad.Code)
}

func TestIntegration_LogoutRevokesToken(t *testing.T) {
	deps := setupIntegrationTest(t)

	_, token := deps.registerUser(t)

	resp := deps.doRequest(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	// 吊销后的 token 无法再访问受保护接口
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	deps.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIntegration_ProfileKeepsStatusOnPresenceMiss(t *testing.T) {
	deps := setupIntegrationTest(t)
	ctx := context.Background()

	_, aliceToken := deps.registerUser(t)
	bob, bobToken := deps.registerUser(t)

	// 注册后没有缓存条目，资料接口回退到数据库状态
	resp := deps.doRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bob.ID), aliceToken, nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	var profile model.User
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, model.StatusOffline, profile.Status, "缓存未命中应该返回数据库状态而不是空串")

	// 更新状态后缓存命中
	updated := deps.doRequest(t, http.MethodPut, "/api/v1/users/me/status", bobToken, gin.H{
		"status": model.StatusAway,
	})
	require.Equal(t, response.CodeSuccess, updated.Code)

	resp = deps.doRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bob.ID), aliceToken, nil)
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, model.StatusAway, profile.Status)

	// 缓存条目过期后仍然回退到数据库状态
	require.NoError(t, deps.redisClient.Del(ctx, fmt.Sprintf("user:presence:%d", bob.ID)).Err())

	resp = deps.doRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bob.ID), aliceToken, nil)
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, model.StatusAway, profile.Status)
}

func TestIntegration_ChatFlow(t *testing.T) {
	deps := setupIntegrationTest(t)

	_, aliceToken := deps.registerUser(t)
	bob, bobToken := deps.registerUser(t)

	// alice 创建与 bob 的会话
	created := deps.doRequest(t, http.MethodPost, "/api/v1/chats", aliceToken, gin.H{
		"participantIds": []string{fmt.Sprintf("%d", bob.ID)},
	})
	require.Equal(t, response.CodeSuccess, created.Code, "创建会话应该成功")

	var chat model.ChatSummary
	require.NoError(t, json.Unmarshal(created.Data, &chat))
	deps.chatIDs = append(deps.chatIDs, chat.ID)
	assert.Equal(t, model.ChatDirect, chat.Type)

	chatPath := fmt.Sprintf("/api/v1/chats/%d", chat.ID)

	// alice 发两条消息
	var messageIDs []string
	for _, content := range []string{"hello", "are you there?"} {
		sent := deps.doRequest(t, http.MethodPost, chatPath+"/messages", aliceToken, gin.H{
			"content": content,
		})
		require.Equal(t, response.CodeSuccess, sent.Code)

		var msg model.Message
		require.NoError(t, json.Unmarshal(sent.Data, &msg))
		assert.Equal(t, model.MessageSent, msg.Status)
		messageIDs = append(messageIDs, fmt.Sprintf("%d", msg.ID))
	}

	// bob 的未读数是 2
	unread := deps.doRequest(t, http.MethodGet, chatPath+"/unread-count", bobToken, nil)
	require.Equal(t, response.CodeSuccess, unread.Code)
	var unreadData struct {
		UnreadCount int `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(unread.Data, &unreadData))
	assert.Equal(t, 2, unreadData.UnreadCount)

	// alice 自己的未读数是 0
	aliceUnread := deps.doRequest(t, http.MethodGet, chatPath+"/unread-count", aliceToken, nil)
	require.NoError(t, json.Unmarshal(aliceUnread.Data, &unreadData))
	assert.Equal(t, 0, unreadData.UnreadCount)

	// bob 标记已读
	marked := deps.doRequest(t, http.MethodPost, "/api/v1/messages/read", bobToken, gin.H{
		"messageIds": messageIDs,
	})
	require.Equal(t, response.CodeSuccess, marked.Code)
	var markedData struct {
		UpdatedCount int `json:"updatedCount"`
	}
	require.NoError(t, json.Unmarshal(marked.Data, &markedData))
	assert.Equal(t, 2, markedData.UpdatedCount)

	// 再查未读归零
	unread = deps.doRequest(t, http.MethodGet, chatPath+"/unread-count", bobToken, nil)
	require.NoError(t, json.Unmarshal(unread.Data, &unreadData))
	assert.Equal(t, 0, unreadData.UnreadCount)

	// 重复标记幂等
	marked = deps.doRequest(t, http.MethodPost, "/api/v1/messages/read", bobToken, gin.H{
		"messageIds": messageIDs,
	})
	require.NoError(t, json.Unmarshal(marked.Data, &markedData))
	assert.Equal(t, 0, markedData.UpdatedCount)
}

func TestIntegration_AccessControl(t *testing.T) {
	deps := setupIntegrationTest(t)

	_, aliceToken := deps.registerUser(t)
	bob, _ := deps.registerUser(t)
	_, eveToken := deps.registerUser(t)

	created := deps.doRequest(t, http.MethodPost, "/api/v1/chats", aliceToken, gin.H{
		"participantIds": []string{fmt.Sprintf("%d", bob.ID)},
	})
	require.Equal(t, response.CodeSuccess, created.Code)

	var chat model.ChatSummary
	require.NoError(t, json.Unmarshal(created.Data, &chat))
	deps.chatIDs = append(deps.chatIDs, chat.ID)

	chatPath := fmt.Sprintf("/api/v1/chats/%d", chat.ID)

	// 非成员访问会话详情
	detail := deps.doRequest(t, http.MethodGet, chatPath, eveToken, nil)
	assert.Equal(t, response.CodeAccessDenied, detail.Code)

	// 非成员发消息
	sent := deps.doRequest(t, http.MethodPost, chatPath+"/messages", eveToken, gin.H{
		"content": "let me in",
	})
	assert.Equal(t, response.CodeAccessDenied, sent.Code)

	// 非成员查未读数
	unread := deps.doRequest(t, http.MethodGet, chatPath+"/unread-count", eveToken, nil)
	assert.Equal(t, response.CodeAccessDenied, unread.Code)

	// 非成员标记已读
	msg := deps.doRequest(t, http.MethodPost, chatPath+"/messages", aliceToken, gin.H{
		"content": "private",
	})
	require.Equal(t, response.CodeSuccess, msg.Code)
	var sentMsg model.Message
	require.NoError(t, json.Unmarshal(msg.Data, &sentMsg))

	marked := deps.doRequest(t, http.MethodPost, "/api/v1/messages/read", eveToken, gin.H{
		"messageIds": []string{fmt.Sprintf("%d", sentMsg.ID)},
	})
	assert.Equal(t, response.CodeAccessDenied, marked.Code)

	// 未认证请求
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	w := httptest.NewRecorder()
	deps.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIntegration_InvalidRequests(t *testing.T) {
	deps := setupIntegrationTest(t)

	_, token := deps.registerUser(t)

	// 非法的消息 ID 格式
	resp := deps.doRequest(t, http.MethodPost, "/api/v1/messages/read", token, gin.H{
		"messageIds": []string{"not-a-number"},
	})
	assert.Equal(t, response.CodeInvalidParams, resp.Code)

	// 空消息内容（binding 层拒绝）
	resp = deps.doRequest(t, http.MethodPost, "/api/v1/chats/123/messages", token, gin.H{})
	assert.Equal(t, response.CodeInvalidParams, resp.Code)

	// 非法会话 ID
	resp = deps.doRequest(t, http.MethodGet, "/api/v1/chats/abc", token, nil)
	assert.Equal(t, response.CodeInvalidParams, resp.Code)
}
