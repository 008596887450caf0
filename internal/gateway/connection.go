package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrConnectionClosed = errors.New("connection closed")

var connIDCounter int64

// Connection 表示一条客户端订阅连接
// Send 只入队，所有真正的写都在 writeLoop 单协程里完成
type Connection struct {
	id           int64
	userID       int64
	ws           *websocket.Conn
	logger       *slog.Logger
	writeChan    chan []byte
	closeChan    chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
	createTime   time.Time
}

// NewConnection 包装一条升级完成的 WebSocket 连接并启动写循环
func NewConnection(ws *websocket.Conn, userID int64, sendBuffer int, writeTimeout, pingInterval time.Duration, logger *slog.Logger) *Connection {
	id := atomic.AddInt64(&connIDCounter, 1)
	c := &Connection{
		id:           id,
		userID:       userID,
		ws:           ws,
		logger:       logger,
		writeChan:    make(chan []byte, sendBuffer),
		closeChan:    make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		createTime:   time.Now(),
	}
	go c.writeLoop()
	return c
}

func (c *Connection) ID() int64 {
	return c.id
}

func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) CreateTime() time.Time {
	return c.createTime
}

// Send 把一帧数据排入写队列，连接已关闭时返回错误
func (c *Connection) Send(data []byte) error {
	select {
	case c.writeChan <- data:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeChan:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Failed to write frame", "connId", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close 幂等关闭
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// Closed 返回连接关闭信号
func (c *Connection) Closed() <-chan struct{} {
	return c.closeChan
}
