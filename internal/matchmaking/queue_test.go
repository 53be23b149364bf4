// internal/matchmaking/queue_test.go
package matchmaking

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t1ww/code-battle/internal/models"
)

type startedMatch struct {
	mode  string
	timed bool
	side1 []models.PlayerInfo
	side2 []models.PlayerInfo
}

// mockStarter records every pairing instead of launching sessions.
type mockStarter struct {
	mu      sync.Mutex
	matches []startedMatch
}

func (m *mockStarter) StartMatch(mode string, timed bool, side1, side2 []models.PlayerInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, startedMatch{mode, timed, side1, side2})
}

func (m *mockStarter) all() []startedMatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]startedMatch(nil), m.matches...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func pl(id string) models.PlayerInfo {
	return models.PlayerInfo{PlayerID: id, Name: id, ConnID: "conn-" + id}
}

func soloEntry(id string, timed bool) *Entry {
	return &Entry{ID: id, Mode: Mode1v1, Timed: timed, Players: []models.PlayerInfo{pl(id)}}
}

func teamEntry(id string, timed bool, members ...string) *Entry {
	players := make([]models.PlayerInfo, 0, len(members))
	for _, m := range members {
		players = append(players, pl(m))
	}
	return &Entry{ID: id, Mode: Mode3v3, Timed: timed, Players: players}
}

func newTestManager() (*Manager, *mockStarter) {
	starter := &mockStarter{}
	return NewManager(starter, 0, testLogger()), starter
}

func TestEnqueueRejectsMalformedEntries(t *testing.T) {
	m, _ := newTestManager()

	assert.ErrorIs(t, m.Enqueue(nil), ErrInvalidEntry)
	assert.ErrorIs(t, m.Enqueue(&Entry{Mode: Mode1v1, Players: []models.PlayerInfo{pl("a")}}), ErrInvalidEntry)
	assert.ErrorIs(t, m.Enqueue(&Entry{ID: "a", Mode: "2v2", Players: []models.PlayerInfo{pl("a")}}), ErrInvalidEntry)
	assert.ErrorIs(t, m.Enqueue(&Entry{ID: "a", Mode: Mode1v1, Players: nil}), ErrInvalidEntry)
	// 3v3 with too few members
	assert.ErrorIs(t, m.Enqueue(teamEntry("t1", false, "a", "b")), ErrInvalidEntry)
	// member missing a connection id is undeliverable
	bad := teamEntry("t1", false, "a", "b", "c")
	bad.Players[2].ConnID = ""
	assert.ErrorIs(t, m.Enqueue(bad), ErrInvalidEntry)

	assert.Equal(t, 0, m.Depth(Mode1v1, false))
	assert.Equal(t, 0, m.Depth(Mode3v3, false))
}

func TestEnqueueDuplicateAcrossTiers(t *testing.T) {
	m, _ := newTestManager()

	require.NoError(t, m.Enqueue(soloEntry("alice", false)))
	assert.ErrorIs(t, m.Enqueue(soloEntry("alice", false)), ErrAlreadyQueued)
	// Same mode, other tier: still a duplicate.
	assert.ErrorIs(t, m.Enqueue(soloEntry("alice", true)), ErrAlreadyQueued)

	assert.Equal(t, 1, m.Depth(Mode1v1, false))
	assert.Equal(t, 0, m.Depth(Mode1v1, true))
}

func TestEnqueueTeamMemberOverlap(t *testing.T) {
	m, _ := newTestManager()

	require.NoError(t, m.Enqueue(teamEntry("t1", false, "a", "b", "c")))
	assert.ErrorIs(t, m.Enqueue(teamEntry("t2", false, "c", "d", "e")), ErrMemberQueued)
	assert.ErrorIs(t, m.Enqueue(teamEntry("t2", true, "c", "d", "e")), ErrMemberQueued)
	// Disjoint roster is fine.
	require.NoError(t, m.Enqueue(teamEntry("t3", false, "d", "e", "f")))
}

func TestCancelIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("alice", false)))

	m.Cancel("alice", Mode1v1, false)
	assert.Equal(t, 0, m.Depth(Mode1v1, false))

	// Cancelling again, or something never queued, is a no-op.
	m.Cancel("alice", Mode1v1, false)
	m.Cancel("ghost", Mode3v3, true)
}

func TestCancelAllForDropsPlayerAndTeamEntries(t *testing.T) {
	m, _ := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("alice", false)))
	require.NoError(t, m.Enqueue(teamEntry("t1", true, "alice2", "b", "c")))

	// "alice2" is a member of t1, not its id.
	m.CancelAllFor("alice2")
	assert.Equal(t, 0, m.Depth(Mode3v3, true))
	assert.Equal(t, 1, m.Depth(Mode1v1, false), "unrelated entries stay")

	m.CancelAllFor("alice")
	assert.Equal(t, 0, m.Depth(Mode1v1, false))
}

func TestAttemptMatchesPairsOldestFirst(t *testing.T) {
	m, starter := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("a", false)))
	require.NoError(t, m.Enqueue(soloEntry("b", false)))
	require.NoError(t, m.Enqueue(soloEntry("c", false)))

	m.AttemptMatches()

	matches := starter.all()
	require.Len(t, matches, 1)
	assert.Equal(t, Mode1v1, matches[0].mode)
	assert.False(t, matches[0].timed)
	assert.Equal(t, "a", matches[0].side1[0].PlayerID)
	assert.Equal(t, "b", matches[0].side2[0].PlayerID)
	assert.Equal(t, 1, m.Depth(Mode1v1, false), "the third entry waits for the next cycle")
}

func TestAttemptMatchesPrefersNormalTier(t *testing.T) {
	m, starter := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("n1", false)))
	require.NoError(t, m.Enqueue(soloEntry("n2", false)))
	require.NoError(t, m.Enqueue(soloEntry("t1", true)))
	require.NoError(t, m.Enqueue(soloEntry("t2", true)))

	m.AttemptMatches()

	matches := starter.all()
	require.Len(t, matches, 1)
	assert.False(t, matches[0].timed, "normal tier matches before timed")
	assert.Equal(t, 2, m.Depth(Mode1v1, true))

	m.AttemptMatches()
	matches = starter.all()
	require.Len(t, matches, 2)
	assert.True(t, matches[1].timed, "timed tier is the fallback once normal drains")
}

func TestAttemptMatchesTiersNeverMix(t *testing.T) {
	m, starter := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("n1", false)))
	require.NoError(t, m.Enqueue(soloEntry("t1", true)))

	m.AttemptMatches()

	assert.Empty(t, starter.all(), "a normal entry never pairs with a timed one")
	assert.Equal(t, 1, m.Depth(Mode1v1, false))
	assert.Equal(t, 1, m.Depth(Mode1v1, true))
}

func TestAttemptMatchesRunsEveryMode(t *testing.T) {
	m, starter := newTestManager()
	require.NoError(t, m.Enqueue(soloEntry("a", false)))
	require.NoError(t, m.Enqueue(soloEntry("b", false)))
	require.NoError(t, m.Enqueue(teamEntry("t1", false, "p1", "p2", "p3")))
	require.NoError(t, m.Enqueue(teamEntry("t2", false, "q1", "q2", "q3")))

	m.AttemptMatches()

	matches := starter.all()
	require.Len(t, matches, 2)
	assert.Equal(t, Mode1v1, matches[0].mode)
	assert.Equal(t, Mode3v3, matches[1].mode)
	require.Len(t, matches[1].side1, 3)
	require.Len(t, matches[1].side2, 3)
}
