// internal/game/session.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/t1ww/code-battle/internal/models"
)

// Session is one active match. Its state machine is Active -> Finished,
// one-way: once Finished is set no mutating operation is honored, so
// late-arriving events cannot corrupt a completed result.
type Session struct {
	ID    uuid.UUID
	Mode  string
	Timed bool

	Questions []models.Question
	Teams     [2][]models.PlayerInfo

	// Progress counters are monotonic; Passed records per-question pass bits
	// so a re-reported question never double-counts.
	Progress [2]int
	Passed   [2][]bool

	DrawVotes      map[string]struct{}
	ForfeitEnabled bool
	Finished       bool
	Winner         string // "team1", "team2" or "draw", set with Finished

	CreatedAt time.Time

	drawTimer *time.Timer

	mu sync.Mutex
}

// teamIndexOf returns the 0-based side holding the player, or -1.
func (s *Session) teamIndexOf(playerID string) int {
	for i := range s.Teams {
		if models.ContainsPlayer(s.Teams[i], playerID) {
			return i
		}
	}
	return -1
}

// totalPlayers is the draw-vote quorum: every participant must vote.
func (s *Session) totalPlayers() int {
	return len(s.Teams[0]) + len(s.Teams[1])
}

func (s *Session) participants() []models.PlayerInfo {
	all := make([]models.PlayerInfo, 0, s.totalPlayers())
	all = append(all, s.Teams[0]...)
	all = append(all, s.Teams[1]...)
	return all
}

func teamName(i int) string {
	if i == 1 {
		return "team2"
	}
	return "team1"
}

func playerIDs(side []models.PlayerInfo) []string {
	ids := make([]string, 0, len(side))
	for _, p := range side {
		ids = append(ids, p.PlayerID)
	}
	return ids
}
