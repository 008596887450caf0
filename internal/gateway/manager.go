package gateway

import "sync"

// Manager 管理全部在线连接
// 同一用户允许多条连接（多端在线），按 userID 聚合
type Manager struct {
	connections map[int64]*Connection
	userConns   map[int64]map[int64]*Connection // userID -> connID -> Connection
	mu          sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		connections: make(map[int64]*Connection),
		userConns:   make(map[int64]map[int64]*Connection),
	}
}

func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID()] = conn
	if _, ok := m.userConns[conn.UserID()]; !ok {
		m.userConns[conn.UserID()] = make(map[int64]*Connection)
	}
	m.userConns[conn.UserID()][conn.ID()] = conn
}

// Remove 摘除连接，返回该用户剩余连接数
func (m *Manager) Remove(connID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.connections[connID]
	if !ok {
		return 0
	}
	delete(m.connections, connID)

	remaining := 0
	if userConns, ok := m.userConns[conn.UserID()]; ok {
		delete(userConns, connID)
		remaining = len(userConns)
		if remaining == 0 {
			delete(m.userConns, conn.UserID())
		}
	}
	return remaining
}

func (m *Manager) Get(connID int64) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections[connID]
}

func (m *Manager) GetByUserID(userID int64) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userConns, ok := m.userConns[userID]
	if !ok {
		return nil
	}
	conns := make([]*Connection, 0, len(userConns))
	for _, conn := range userConns {
		conns = append(conns, conn)
	}
	return conns
}

// IsOnline 用户是否有存活连接
func (m *Manager) IsOnline(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userConns[userID]) > 0
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// CloseAll 关闭全部连接（进程退出时调用）
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.connections = make(map[int64]*Connection)
	m.userConns = make(map[int64]map[int64]*Connection)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
