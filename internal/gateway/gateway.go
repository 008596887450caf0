package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/saiquwi/Support-chat/internal/bus"
	"github.com/saiquwi/Support-chat/internal/config"
	"github.com/saiquwi/Support-chat/internal/model"
	"github.com/saiquwi/Support-chat/internal/repository"
	"github.com/saiquwi/Support-chat/internal/service"
	"github.com/saiquwi/Support-chat/pkg/response"
)

// 下行帧类型
const (
	FrameNewMessage    = "newMessage"
	FrameMessageStatus = "messageStatus"
	FrameChatCreated   = "chatCreated"
	FrameChatUpdated   = "chatUpdated"
	FrameUserStatus    = "userStatus"
)

// Frame 下行事件帧
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Gateway 订阅网关
// 一条 WebSocket 连接聚合用户的四路事件流：新消息、状态变更、会话变动、用户状态。
// 新消息送达存活连接后把消息推进 DELIVERED
type Gateway struct {
	hub        *bus.Hub
	manager    *Manager
	tokenRepo  *repository.TokenRepository
	readState  *service.ReadStateService
	membership *service.MembershipService
	userSvc    *service.UserService
	cfg        config.GatewayConfig
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// New 创建订阅网关
func New(
	hub *bus.Hub,
	manager *Manager,
	tokenRepo *repository.TokenRepository,
	readState *service.ReadStateService,
	membership *service.MembershipService,
	userSvc *service.UserService,
	cfg config.GatewayConfig,
) *Gateway {
	return &Gateway{
		hub:        hub,
		manager:    manager,
		tokenRepo:  tokenRepo,
		readState:  readState,
		membership: membership,
		userSvc:    userSvc,
		cfg:        cfg,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 跨域由业务侧 CORS 中间件统一处理
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS 处理订阅连接
// 浏览器 WebSocket 无法自定义 Header，token 优先取 query 参数
func (g *Gateway) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(c)
		return
	}

	userInfo, err := g.tokenRepo.GetUserByToken(c.Request.Context(), token)
	if err != nil {
		response.Unauthorized(c)
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("WebSocket upgrade failed", "userId", userInfo.UserID, "error", err)
		return
	}

	conn := NewConnection(ws, userInfo.UserID,
		g.cfg.SendBuffer, g.cfg.WriteTimeout, g.cfg.PingInterval, g.logger)
	g.manager.Add(conn)

	g.logger.Info("Subscriber connected",
		"connId", conn.ID(), "userId", userInfo.UserID, "online", g.manager.Count())

	ctx := context.Background()
	if _, err := g.userSvc.UpdateStatus(ctx, userInfo.UserID, model.StatusOnline); err != nil {
		g.logger.Warn("Failed to mark user online", "userId", userInfo.UserID, "error", err)
	}

	go g.serve(conn)
	g.readLoop(conn)
}

// serve 订阅事件流并向下行写帧，连接断开时退出
func (g *Gateway) serve(conn *Connection) {
	userID := conn.UserID()
	membership := newMembershipView(g.membership, userID, g.logger)

	newMsgSub := g.hub.Subscribe(bus.TopicNewMessage, bus.ForRecipient(userID))
	statusSub := g.hub.Subscribe(bus.TopicMessageStatusChanged, bus.ForChatMember(userID, membership.contains))
	createdSub := g.hub.Subscribe(bus.TopicChatCreated, bus.ForUser(userID))
	updatedSub := g.hub.Subscribe(bus.TopicChatUpdated, bus.ForUser(userID))
	presenceSub := g.hub.Subscribe(bus.TopicUserStatusChanged, bus.All)
	defer func() {
		newMsgSub.Cancel()
		statusSub.Cancel()
		createdSub.Cancel()
		updatedSub.Cancel()
		presenceSub.Cancel()
	}()

	for {
		select {
		case payload, ok := <-newMsgSub.Events():
			if !ok {
				return
			}
			event := payload.(*bus.NewMessageEvent)
			if g.push(conn, FrameNewMessage, event) {
				// 送达存活连接，消息推进为 DELIVERED
				if _, err := g.readState.MarkDelivered(context.Background(), event.Message.ID); err != nil {
					g.logger.Warn("Failed to mark message delivered",
						"messageId", event.Message.ID, "error", err)
				}
			}

		case payload, ok := <-statusSub.Events():
			if !ok {
				return
			}
			g.push(conn, FrameMessageStatus, payload)

		case payload, ok := <-createdSub.Events():
			if !ok {
				return
			}
			event := payload.(*bus.ChatEvent)
			membership.add(event.Chat.ID)
			g.push(conn, FrameChatCreated, event)

		case payload, ok := <-updatedSub.Events():
			if !ok {
				return
			}
			g.push(conn, FrameChatUpdated, payload)

		case payload, ok := <-presenceSub.Events():
			if !ok {
				return
			}
			g.push(conn, FrameUserStatus, payload)

		case <-conn.Closed():
			return
		}
	}
}

// push 序列化并写入下行队列，返回是否入队成功
func (g *Gateway) push(conn *Connection, frameType string, data interface{}) bool {
	payload, err := json.Marshal(&Frame{Type: frameType, Data: data})
	if err != nil {
		g.logger.Error("Failed to marshal frame", "type", frameType, "error", err)
		return false
	}
	if err := conn.Send(payload); err != nil {
		return false
	}
	return true
}

// readLoop 消费上行帧维持连接存活，客户端的业务操作都走 HTTP 接口
func (g *Gateway) readLoop(conn *Connection) {
	defer g.cleanup(conn)

	conn.ws.SetPongHandler(func(string) error { return nil })
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) cleanup(conn *Connection) {
	conn.Close()
	remaining := g.manager.Remove(conn.ID())

	g.logger.Info("Subscriber disconnected",
		"connId", conn.ID(), "userId", conn.UserID(), "online", g.manager.Count())

	// 最后一条连接断开才算离线
	if remaining == 0 {
		ctx := context.Background()
		if _, err := g.userSvc.UpdateStatus(ctx, conn.UserID(), model.StatusOffline); err != nil {
			g.logger.Warn("Failed to mark user offline", "userId", conn.UserID(), "error", err)
		}
	}
}

// membershipView 维护某用户活跃会话 ID 的内存视图
// 首次订阅时加载一次，之后靠 chatCreated 事件增量补充
type membershipView struct {
	mu    sync.RWMutex
	chats map[int64]struct{}
}

func newMembershipView(membership *service.MembershipService, userID int64, logger *slog.Logger) *membershipView {
	v := &membershipView{chats: make(map[int64]struct{})}

	chatIDs, err := membership.ListActiveChatIDs(context.Background(), userID)
	if err != nil {
		logger.Warn("Failed to load chat membership", "userId", userID, "error", err)
		return v
	}
	for _, id := range chatIDs {
		v.chats[id] = struct{}{}
	}
	return v
}

func (v *membershipView) contains(chatID int64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.chats[chatID]
	return ok
}

func (v *membershipView) add(chatID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chats[chatID] = struct{}{}
}
