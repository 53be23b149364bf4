// internal/invite/invite.go
package invite

import (
	"sync"

	"github.com/google/uuid"
)

// Kind tags what an invite token resolves to.
type Kind string

const (
	KindTeam Kind = "team"
	KindRoom Kind = "room"
)

// Target is the entity an invite token points at.
type Target struct {
	Kind Kind
	ID   uuid.UUID
}

// Registry maps opaque single-purpose tokens to their target. Tokens are
// lookup-only: created alongside their target and never mutated afterwards.
// No expiry is enforced.
type Registry struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]Target
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[uuid.UUID]Target)}
}

// Create issues a fresh token for the target and returns it.
func (r *Registry) Create(kind Kind, targetID uuid.UUID) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := uuid.New()
	r.tokens[token] = Target{Kind: kind, ID: targetID}
	return token
}

// Resolve looks a token up without consuming it. A token whose target has
// since been destroyed still resolves; the owning manager reports the target
// as gone, which is a distinct failure from a token that never existed.
func (r *Registry) Resolve(token uuid.UUID) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	return t, ok
}
