package session

import (
	"sync"
	"time"
)

// Session binds a connection to the room it has joined.
type Session struct {
	JoinedAt     time.Time
	ConnectionID string
	RoomID       string
	DisplayName  string
}

// Manager keeps sessions of live connections.
type Manager struct {
	mx       *sync.RWMutex
	sessions map[string]Session
}

func NewManager() *Manager {
	return &Manager{
		mx:       &sync.RWMutex{},
		sessions: make(map[string]Session),
	}
}

// Bind sets the session of a connection, replacing the previous one.
func (m *Manager) Bind(s Session) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.sessions[s.ConnectionID] = s
}

func (m *Manager) Get(connID string) (Session, bool) {
	m.mx.RLock()
	defer m.mx.RUnlock()
	s, ok := m.sessions[connID]
	return s, ok
}

// Unbind removes and returns the session of a connection.
func (m *Manager) Unbind(connID string) (Session, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	s, ok := m.sessions[connID]
	if ok {
		delete(m.sessions, connID)
	}
	return s, ok
}

func (m *Manager) Len() int {
	m.mx.RLock()
	defer m.mx.RUnlock()
	return len(m.sessions)
}
