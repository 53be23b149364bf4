// internal/connection/registry.go
package connection

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/models"
)

// Conn is the registry's record of one live client link. OutChan is drained
// by the connection's write pump; Cancel tears down the read loop.
type Conn struct {
	ID        string
	Player    models.PlayerInfo
	OutChan   chan interface{}
	Cancel    func()
	CreatedAt time.Time
}

// Registry tracks live connections and the identity attached to each. It is
// the join point for every disconnect cascade and the single path outbound
// messages take to reach a client.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn
	log   *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		log:   log,
	}
}

// Attach records a live connection. Malformed input is a logged no-op, never
// an error: the transport layer already owns the connection's fate.
func (r *Registry) Attach(conn *Conn) {
	if conn == nil || conn.ID == "" || conn.Player.PlayerID == "" {
		r.log.Warn("connection registry: ignored attach with missing connection or player id")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[conn.ID]; ok && old != conn {
		r.log.Warnf("connection registry: replacing existing connection %s", conn.ID)
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	conn.Player.ConnID = conn.ID
	r.conns[conn.ID] = conn
	r.log.Infof("connection %s attached for player %s", conn.ID, conn.Player.PlayerID)
}

// Detach removes the entry. Unknown or empty ids are warned about and
// otherwise ignored.
func (r *Registry) Detach(connID string) {
	if connID == "" {
		r.log.Warn("connection registry: ignored detach with empty id")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.log.Warnf("connection registry: detach of unknown connection %s", connID)
		return
	}
	delete(r.conns, connID)
	r.log.Infof("connection %s detached", connID)
}

// Get returns the live connection for an id.
func (r *Registry) Get(connID string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Identity returns the player attached to a connection.
func (r *Registry) Identity(connID string) (models.PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return models.PlayerInfo{}, false
	}
	return c.Player, true
}

// Send pushes a message onto the connection's out channel non-blockingly.
// A full or missing channel drops the message with a logged warning; slow
// consumers never stall event processing.
func (r *Registry) Send(connID string, msg interface{}) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	r.mu.Unlock()
	if !ok {
		r.log.Debugf("connection registry: send to unknown connection %s dropped", connID)
		return
	}
	select {
	case c.OutChan <- msg:
	default:
		r.log.Warnf("connection registry: out channel for %s full, message dropped", connID)
	}
}

// FindByPlayer locates the live connection carrying a player id.
func (r *Registry) FindByPlayer(playerID string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.Player.PlayerID == playerID {
			return c, true
		}
	}
	return nil, false
}

// Count reports how many connections are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
