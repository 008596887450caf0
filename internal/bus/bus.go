package bus

import (
	"log/slog"
	"sync"
)

// Topic 事件主题
type Topic string

const (
	TopicNewMessage           Topic = "newMessage"
	TopicMessageStatusChanged Topic = "messageStatusChanged"
	TopicChatCreated          Topic = "chatCreated"
	TopicChatUpdated          Topic = "chatUpdated"
	TopicUserStatusChanged    Topic = "userStatusChanged"
)

// Predicate 订阅过滤器：对 payload 的纯函数，返回 true 表示投递
type Predicate func(payload interface{}) bool

// All 不过滤，接收主题下全部事件
func All(interface{}) bool { return true }

// Hub 进程内发布订阅中心
// 显式构造、依赖注入，不是全局单例；生命周期 New -> Close
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]*Subscription
	nextID      int64
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

// Subscription 一个订阅者的事件流
type Subscription struct {
	id        int64
	topic     Topic
	predicate Predicate
	ch        chan interface{}
	hub       *Hub
	closeOnce sync.Once
}

// Events 订阅者的事件通道，Cancel 后关闭
func (s *Subscription) Events() <-chan interface{} {
	return s.ch
}

// Cancel 注销订阅并释放通道
// 幂等；正在进行中的 Publish 不会投递到已注销的订阅者
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	if subs, ok := s.hub.subscribers[s.topic]; ok {
		delete(subs, s.id)
	}
	s.hub.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// New 创建事件中心
// bufferSize 是每个订阅者的独立缓冲大小
func New(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[Topic]map[int64]*Subscription),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe 注册订阅者，predicate 决定哪些事件投递给它
func (h *Hub) Subscribe(topic Topic, predicate Predicate) *Subscription {
	if predicate == nil {
		predicate = All
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:        h.nextID,
		topic:     topic,
		predicate: predicate,
		ch:        make(chan interface{}, h.bufferSize),
		hub:       h,
	}

	if h.closed {
		// Hub 已关闭：返回已关闭的空订阅，调用方的 range 会立即结束
		close(sub.ch)
		return sub
	}

	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[int64]*Subscription)
	}
	h.subscribers[topic][sub.id] = sub

	return sub
}

// Publish 向主题的所有匹配订阅者投递事件
// 每个订阅者有独立缓冲，缓冲满时丢弃该订阅者的这条事件而不是阻塞发布方；
// 客户端靠拉取查询自愈，事件不是权威数据源
func (h *Hub) Publish(topic Topic, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for _, sub := range h.subscribers[topic] {
		if !sub.predicate(payload) {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
			h.logger.Warn("Subscriber buffer full, event dropped",
				"topic", string(topic),
				"subscriberId", sub.id)
		}
	}
}

// SubscriberCount 主题当前订阅者数量
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// Close 关闭事件中心，注销所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, subs := range h.subscribers {
		for _, sub := range subs {
			sub.closeOnce.Do(func() {
				close(sub.ch)
			})
		}
	}
	h.subscribers = make(map[Topic]map[int64]*Subscription)
}
