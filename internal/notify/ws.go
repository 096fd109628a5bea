package notify

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrNoSession means the partner has no live WebSocket connection.
var ErrNoSession = errors.New("no ws session")

// WSSession is one connected partner device.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(payload)
}

// WSRegistry tracks live partner sessions by partner id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession)}
}

func (r *WSRegistry) Add(partnerID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[partnerID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(partnerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, partnerID)
}

func (r *WSRegistry) Send(partnerID string, payload Payload) error {
	r.mu.RLock()
	s, ok := r.sessions[partnerID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(payload)
}
