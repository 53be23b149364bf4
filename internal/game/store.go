// internal/game/store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// Store holds every live session keyed by id. Sessions stay briefly after
// finishing so a reconnecting player can still query the final state.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*Session)}
}

func (s *Store) Add(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// ForPlayer returns every session that includes the player.
func (s *Store) ForPlayer(playerID string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.teamIndexOf(playerID) >= 0 {
			out = append(out, sess)
		}
	}
	return out
}
