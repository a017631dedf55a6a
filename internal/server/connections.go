package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionRegistry tracks the live socket for each authenticated player
// id. It is pure bookkeeping: it never writes to a socket, and sending is
// always the caller's responsibility.
type ConnectionRegistry struct {
	conns map[string]*websocket.Conn // playerID → socket
	mu    sync.RWMutex
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*websocket.Conn),
	}
}

// Register maps a player id to a socket. A later registration for the same
// id wins; the displaced socket (if any) is returned so the caller can
// close it.
func (cr *ConnectionRegistry) Register(playerID string, conn *websocket.Conn) *websocket.Conn {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	old := cr.conns[playerID]
	cr.conns[playerID] = conn
	if old == conn {
		return nil
	}
	return old
}

// Lookup returns the live socket for a player id, or nil.
func (cr *ConnectionRegistry) Lookup(playerID string) *websocket.Conn {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.conns[playerID]
}

// Unregister removes the mapping, but only if the given socket is still the
// registered one. A displaced handle's cleanup must not drop the newer
// registration. Returns whether the mapping was removed.
func (cr *ConnectionRegistry) Unregister(playerID string, conn *websocket.Conn) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	current, exists := cr.conns[playerID]
	if !exists || current != conn {
		return false
	}
	delete(cr.conns, playerID)
	return true
}

// Count returns the number of registered players.
func (cr *ConnectionRegistry) Count() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.conns)
}

// All returns a snapshot of the registered sockets, used at shutdown.
func (cr *ConnectionRegistry) All() []*websocket.Conn {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(cr.conns))
	for _, c := range cr.conns {
		conns = append(conns, c)
	}
	return conns
}
