// Package ws serves the coaching chat over WebSocket.
package ws

import (
	"log/slog"
	"sync"

	"github.com/ashureev/callprep/internal/store"
	"github.com/coder/websocket"
)

// Conn is the part of a WebSocket connection the manager needs.
type Conn interface {
	Close(code websocket.StatusCode, reason string) error
}

// ConnectionManager tracks the live connection of every coaching session.
// A session has at most one connection; a newer one replaces the older.
type ConnectionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]Conn // owner -> session -> conn
}

// NewConnectionManager creates a new connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		active: make(map[string]map[string]Conn),
	}
}

// GetActive returns the active connection for a session.
func (m *ConnectionManager) GetActive(key store.SessionKey) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[key.OwnerID]; ok {
		return sessions[key.SessionID]
	}
	return nil
}

// Register adds a connection, closing any previous one for the same session.
func (m *ConnectionManager) Register(key store.SessionKey, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[key.OwnerID]; !exists {
		m.active[key.OwnerID] = make(map[string]Conn)
	}

	if existing, exists := m.active[key.OwnerID][key.SessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[key.OwnerID][key.SessionID] = conn
	slog.Info("Coach connection registered", "owner_id", key.OwnerID, "session_id", key.SessionID)
}

// Unregister removes conn if it is still the session's active connection.
func (m *ConnectionManager) Unregister(key store.SessionKey, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[key.OwnerID]
	if !ok {
		return
	}
	if current, exists := sessions[key.SessionID]; exists && current == conn {
		delete(sessions, key.SessionID)
		if len(sessions) == 0 {
			delete(m.active, key.OwnerID)
		}
		slog.Info("Coach connection unregistered", "owner_id", key.OwnerID, "session_id", key.SessionID)
	}
}

// CloseSession terminates the connection of an expired session.
func (m *ConnectionManager) CloseSession(key store.SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[key.OwnerID]
	if !ok {
		return
	}
	conn, ok := sessions[key.SessionID]
	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusGoingAway, "session expired")
	delete(sessions, key.SessionID)
	if len(sessions) == 0 {
		delete(m.active, key.OwnerID)
	}
	slog.Info("Coach connection closed", "owner_id", key.OwnerID, "session_id", key.SessionID)
}

// Count returns the number of live connections.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
