package relay

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is the minimal connection surface the registry needs. A gorilla
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// ConnectionRegistry tracks live participant connections per session key and
// fans payloads out to everyone but the sender. It is the one structure
// shared across concurrent sessions; the lock is held only for map mutation
// and snapshotting, never across socket writes.
type ConnectionRegistry struct {
	mu       sync.Mutex
	sessions map[string]map[Conn]struct{}
	logger   *zap.Logger
}

// NewConnectionRegistry creates an empty registry
func NewConnectionRegistry(logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[string]map[Conn]struct{}),
		logger:   logger,
	}
}

// Register adds a connection under a session key
func (r *ConnectionRegistry) Register(sessionKey string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[sessionKey]
	if !ok {
		set = make(map[Conn]struct{})
		r.sessions[sessionKey] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes a connection; the session entry is deleted when its
// last connection leaves so no empty sets dangle.
func (r *ConnectionRegistry) Unregister(sessionKey string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[sessionKey]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.sessions, sessionKey)
	}
}

// Count returns the number of live connections for a session key
func (r *ConnectionRegistry) Count(sessionKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions[sessionKey])
}

// BroadcastExcept sends a payload to every connection registered under the
// session key except the sender. Individual send failures (a peer that
// closed between snapshot and write) are logged and skipped; the broadcast
// continues to the remaining connections.
func (r *ConnectionRegistry) BroadcastExcept(sessionKey string, messageType int, payload []byte, sender Conn) {
	r.mu.Lock()
	set := r.sessions[sessionKey]
	targets := make([]Conn, 0, len(set))
	for conn := range set {
		if conn != sender {
			targets = append(targets, conn)
		}
	}
	r.mu.Unlock()

	for _, conn := range targets {
		if err := conn.WriteMessage(messageType, payload); err != nil {
			r.logger.Debug("broadcast send failed, skipping connection",
				zap.String("session_key", sessionKey),
				zap.Error(err))
		}
	}
}
