// internal/matchmaking/queue.go
package matchmaking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/models"
)

// Game modes.
const (
	Mode1v1 = "1v1"
	Mode3v3 = "3v3"
)

var (
	ErrInvalidEntry  = errors.New("queue entry is missing an id or deliverable members")
	ErrAlreadyQueued = errors.New("already queued in this mode")
	ErrMemberQueued  = errors.New("a team member is already queued in this mode")
)

// Entry is a player or team awaiting pairing in one mode and tier.
type Entry struct {
	ID         string // player id for 1v1, team id for 3v3
	Mode       string
	Timed      bool
	Players    []models.PlayerInfo
	EnqueuedAt time.Time
}

// MatchStarter receives the two popped sides of a successful match attempt.
type MatchStarter interface {
	StartMatch(mode string, timed bool, side1, side2 []models.PlayerInfo)
}

type queueKey struct {
	mode  string
	timed bool
}

// Manager keeps two independent FIFO queues per mode (normal and timed) and
// runs the periodic match-attempt cycle. Insertion order is the only
// tie-break: the oldest eligible entries are always matched first.
type Manager struct {
	mu      sync.Mutex
	queues  map[queueKey][]*Entry
	starter MatchStarter
	log     *logrus.Logger

	interval time.Duration
}

func NewManager(starter MatchStarter, interval time.Duration, log *logrus.Logger) *Manager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		queues:   make(map[queueKey][]*Entry),
		starter:  starter,
		log:      log,
		interval: interval,
	}
}

func playersOf(mode string) int {
	if mode == Mode3v3 {
		return 3
	}
	return 1
}

// Enqueue validates and appends an entry. Rejections are typed business
// errors and leave every queue untouched: a malformed entry, a duplicate
// player/team id within the mode, or (for 3v3) any member already queued on
// another team in that mode.
func (m *Manager) Enqueue(e *Entry) error {
	if e == nil || e.ID == "" || (e.Mode != Mode1v1 && e.Mode != Mode3v3) {
		return ErrInvalidEntry
	}
	if len(e.Players) != playersOf(e.Mode) {
		return ErrInvalidEntry
	}
	for _, p := range e.Players {
		if !p.Valid() {
			return ErrInvalidEntry
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Uniqueness is per mode across both tiers.
	for _, timed := range []bool{false, true} {
		for _, queued := range m.queues[queueKey{e.Mode, timed}] {
			if queued.ID == e.ID {
				return ErrAlreadyQueued
			}
			if e.Mode == Mode3v3 {
				for _, p := range e.Players {
					if models.ContainsPlayer(queued.Players, p.PlayerID) {
						return ErrMemberQueued
					}
				}
			}
		}
	}

	e.EnqueuedAt = time.Now()
	key := queueKey{e.Mode, e.Timed}
	m.queues[key] = append(m.queues[key], e)
	m.log.Infof("matchmaking: %s entry %s queued (timed=%v, depth=%d)", e.Mode, e.ID, e.Timed, len(m.queues[key]))
	return nil
}

// Cancel removes the entry with the given id from the mode's tier. Removing
// an absent entry is an idempotent no-op.
func (m *Manager) Cancel(id, mode string, timed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(queueKey{mode, timed}, func(e *Entry) bool { return e.ID == id })
}

// CancelAllFor drops every entry, in every mode and tier, that is the player
// or contains the player as a team member. Used by the disconnect cascade.
func (m *Manager) CancelAllFor(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.queues {
		m.removeLocked(key, func(e *Entry) bool {
			return e.ID == playerID || models.ContainsPlayer(e.Players, playerID)
		})
	}
}

func (m *Manager) removeLocked(key queueKey, drop func(*Entry) bool) {
	q := m.queues[key]
	kept := q[:0]
	for _, e := range q {
		if drop(e) {
			m.log.Infof("matchmaking: entry %s removed from %s queue (timed=%v)", e.ID, key.mode, key.timed)
			continue
		}
		kept = append(kept, e)
	}
	m.queues[key] = kept
}

// Depth reports the current queue length for a mode and tier.
func (m *Manager) Depth(mode string, timed bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queueKey{mode, timed}])
}

// SetInterval overrides the cycle period. Must be called before Run.
func (m *Manager) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Run drives the match-attempt cycle until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.log.Infof("matchmaking: cycle started (every %s)", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("matchmaking: cycle stopped")
			return
		case <-ticker.C:
			m.AttemptMatches()
		}
	}
}

// AttemptMatches runs one cycle: per mode it tries the normal tier first and
// falls back to the timed tier only when the normal tier lacks candidates.
// Empty queues are a normal outcome, never an error.
func (m *Manager) AttemptMatches() {
	for _, mode := range []string{Mode1v1, Mode3v3} {
		if !m.tryMatch(mode, false) {
			m.tryMatch(mode, true)
		}
	}
}

// tryMatch pops the two oldest entries of the tier and hands them to the
// starter. Returns false when there were not enough candidates.
func (m *Manager) tryMatch(mode string, timed bool) bool {
	key := queueKey{mode, timed}

	m.mu.Lock()
	q := m.queues[key]
	if len(q) < 2 {
		m.mu.Unlock()
		return false
	}
	side1, side2 := q[0], q[1]
	m.queues[key] = append(q[:0:0], q[2:]...)
	m.mu.Unlock()

	m.log.Infof("matchmaking: paired %s and %s (%s, timed=%v)", side1.ID, side2.ID, mode, timed)
	m.starter.StartMatch(mode, timed, side1.Players, side2.Players)
	return true
}
