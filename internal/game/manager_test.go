// internal/game/manager_test.go
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
)

// mockSender collects messages per connection id.
type mockSender struct {
	mu   sync.Mutex
	msgs map[string][]interface{}
}

func newMockSender() *mockSender {
	return &mockSender{msgs: make(map[string][]interface{})}
}

func (m *mockSender) Send(connID string, msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[connID] = append(m.msgs[connID], msg)
}

func (m *mockSender) byConn(connID string) []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.msgs[connID]...)
}

func (m *mockSender) countOfType(connID string, match func(interface{}) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs[connID] {
		if match(msg) {
			n++
		}
	}
	return n
}

// stubQuestions serves a fixed-size question set, or fails on demand.
type stubQuestions struct {
	fail bool
}

func (q *stubQuestions) FetchQuestions(ctx context.Context, count int, level string) ([]models.Question, error) {
	if q.fail {
		return nil, errors.New("question service unavailable")
	}
	out := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.Question{
			ID:    fmt.Sprintf("q%d", i+1),
			Title: fmt.Sprintf("Question %d", i+1),
			Level: level,
		})
	}
	return out, nil
}

// mockPublisher hands each finished-match record to a channel so tests can
// wait on the asynchronous publish.
type mockPublisher struct {
	results chan models.MatchResult
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{results: make(chan models.MatchResult, 4)}
}

func (p *mockPublisher) PublishMatchResult(ctx context.Context, result models.MatchResult) error {
	p.results <- result
	return nil
}

func (p *mockPublisher) wait(t *testing.T) models.MatchResult {
	t.Helper()
	select {
	case r := <-p.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no match result was published")
		return models.MatchResult{}
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func pl(id string) models.PlayerInfo {
	return models.PlayerInfo{PlayerID: id, Name: id, ConnID: "conn-" + id}
}

func newTestManager() (*Manager, *mockSender, *mockPublisher) {
	sender := newMockSender()
	publisher := newMockPublisher()
	m := NewManager(sender, &stubQuestions{}, publisher, testLogger())
	return m, sender, publisher
}

// start1v1 launches an alice-vs-bob session and returns its id.
func start1v1(t *testing.T, m *Manager) uuid.UUID {
	t.Helper()
	m.StartMatch("1v1", false, []models.PlayerInfo{pl("alice")}, []models.PlayerInfo{pl("bob")})
	sessions := m.Store().ForPlayer("alice")
	require.Len(t, sessions, 1)
	return sessions[0].ID
}

func start3v3(t *testing.T, m *Manager) uuid.UUID {
	t.Helper()
	side1 := []models.PlayerInfo{pl("a1"), pl("a2"), pl("a3")}
	side2 := []models.PlayerInfo{pl("b1"), pl("b2"), pl("b3")}
	m.StartMatch("3v3", true, side1, side2)
	sessions := m.Store().ForPlayer("a1")
	require.Len(t, sessions, 1)
	return sessions[0].ID
}

func TestStartMatchNotifiesBothSides(t *testing.T) {
	m, sender, _ := newTestManager()
	gameID := start1v1(t, m)

	for conn, team := range map[string]int{"conn-alice": 1, "conn-bob": 2} {
		msgs := sender.byConn(conn)
		require.Len(t, msgs, 1)
		started, ok := msgs[0].(protocol.MatchStartedMessage)
		require.True(t, ok)
		assert.Equal(t, gameID.String(), started.GameID)
		assert.Equal(t, team, started.YourTeam)
		assert.Len(t, started.Questions, 3)
	}
}

func TestStartMatchAbortsOnFetchFailure(t *testing.T) {
	sender := newMockSender()
	m := NewManager(sender, &stubQuestions{fail: true}, nil, testLogger())

	m.StartMatch("1v1", false, []models.PlayerInfo{pl("alice")}, []models.PlayerInfo{pl("bob")})

	assert.Empty(t, m.Store().ForPlayer("alice"), "no session without questions")
	msgs := sender.byConn("conn-alice")
	require.Len(t, msgs, 1)
	errMsg, ok := msgs[0].(protocol.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeInternal, errMsg.Code)
}

func TestRecordQuestionFinishedIsMonotonic(t *testing.T) {
	m, sender, _ := newTestManager()
	gameID := start1v1(t, m)

	require.NoError(t, m.RecordQuestionFinished(gameID, 1, 0, []int{0, 1}))
	// Re-reporting the same question never double-counts.
	require.NoError(t, m.RecordQuestionFinished(gameID, 1, 0, []int{0, 1}))

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.Equal(t, 1, s.Progress[0])
	assert.Equal(t, 0, s.Progress[1])

	isProgress := func(msg interface{}) bool {
		_, ok := msg.(protocol.ProgressMessage)
		return ok
	}
	assert.Equal(t, 2, sender.countOfType("conn-bob", isProgress), "each report still broadcasts the tally")
}

func TestRecordQuestionFinishedValidation(t *testing.T) {
	m, _, _ := newTestManager()
	gameID := start1v1(t, m)

	assert.ErrorIs(t, m.RecordQuestionFinished(uuid.New(), 1, 0, nil), ErrNotFound)
	assert.ErrorIs(t, m.RecordQuestionFinished(gameID, 3, 0, nil), ErrInvalidTeam)
	assert.ErrorIs(t, m.RecordQuestionFinished(gameID, 1, 9, nil), ErrInvalidQuestion)
	assert.ErrorIs(t, m.RecordQuestionFinished(gameID, 1, -1, nil), ErrInvalidQuestion)
}

func TestTeamWinsOnAllQuestions(t *testing.T) {
	m, sender, publisher := newTestManager()
	gameID := start1v1(t, m)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordQuestionFinished(gameID, 2, i, []int{0}))
	}

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.True(t, s.Finished)
	assert.Equal(t, "team2", s.Winner)

	result := publisher.wait(t)
	assert.Equal(t, "team2", result.Winner)
	assert.Equal(t, "questions completed", result.Reason)
	assert.Equal(t, 3, result.Progress2)

	msgs := sender.byConn("conn-alice")
	ended, ok := msgs[len(msgs)-1].(protocol.GameEndedMessage)
	require.True(t, ok)
	assert.Equal(t, "team2", ended.Winner)

	// The terminal state is immutable: late reports change nothing.
	require.NoError(t, m.RecordQuestionFinished(gameID, 1, 0, nil))
	assert.Equal(t, 0, s.Progress[0])
	assert.Equal(t, "team2", s.Winner)
}

func TestVoteDrawQuorumIsExact(t *testing.T) {
	m, sender, publisher := newTestManager()
	gameID := start3v3(t, m)

	voters := []string{"a1", "a2", "a3", "b1", "b2"}
	for _, v := range voters {
		require.NoError(t, m.VoteDraw(gameID, v))
	}
	// Repeat votes are idempotent and never inflate the tally.
	require.NoError(t, m.VoteDraw(gameID, "a1"))

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.False(t, s.Finished, "five of six votes is not quorum")

	require.NoError(t, m.VoteDraw(gameID, "b3"))
	assert.True(t, s.Finished)
	assert.Equal(t, "draw", s.Winner)

	result := publisher.wait(t)
	assert.Equal(t, "draw", result.Winner)

	// The opposing team heard the draw request on the first vote.
	isRequest := func(msg interface{}) bool {
		_, ok := msg.(protocol.DrawRequestedMessage)
		return ok
	}
	assert.Greater(t, sender.countOfType("conn-b1", isRequest), 0)
}

func TestVoteDrawRejectsOutsiders(t *testing.T) {
	m, _, _ := newTestManager()
	gameID := start1v1(t, m)

	assert.ErrorIs(t, m.VoteDraw(gameID, "mallory"), ErrNotParticipant)
	assert.ErrorIs(t, m.VoteDraw(uuid.New(), "alice"), ErrNotFound)
}

func TestForfeitGateOpensAfterDrawTimeout(t *testing.T) {
	m, sender, publisher := newTestManager()
	m.SetDrawTimeout(30 * time.Millisecond)
	gameID := start1v1(t, m)

	assert.ErrorIs(t, m.Forfeit(gameID, "alice"), ErrForfeitDisabled)

	require.NoError(t, m.VoteDraw(gameID, "alice"))
	time.Sleep(120 * time.Millisecond)

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.False(t, s.Finished, "a lapsed draw vote does not end the game")
	assert.True(t, s.ForfeitEnabled)

	isEnabled := func(msg interface{}) bool {
		_, ok := msg.(protocol.ForfeitEnabledMessage)
		return ok
	}
	assert.Equal(t, 1, sender.countOfType("conn-bob", isEnabled))

	require.NoError(t, m.Forfeit(gameID, "alice"))
	assert.True(t, s.Finished)
	assert.Equal(t, "team2", s.Winner, "forfeiting concedes to the opposing side")
	result := publisher.wait(t)
	assert.Equal(t, "forfeit", result.Reason)
}

func TestLeaveGameIsUngated(t *testing.T) {
	m, _, publisher := newTestManager()
	gameID := start1v1(t, m)

	require.NoError(t, m.LeaveGame(gameID, "bob"))

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.True(t, s.Finished)
	assert.Equal(t, "team1", s.Winner)
	result := publisher.wait(t)
	assert.Equal(t, "player left", result.Reason)

	// Leaving a finished game is a silent no-op.
	require.NoError(t, m.LeaveGame(gameID, "alice"))
	assert.Equal(t, "team1", s.Winner)
}

func TestRelaySabotageTargetsOneTeam(t *testing.T) {
	m, sender, _ := newTestManager()
	gameID := start3v3(t, m)

	require.NoError(t, m.RelaySabotage(gameID, "a1", 2))

	isSabotage := func(msg interface{}) bool {
		_, ok := msg.(protocol.SabotageMessage)
		return ok
	}
	for _, conn := range []string{"conn-b1", "conn-b2", "conn-b3"} {
		assert.Equal(t, 1, sender.countOfType(conn, isSabotage))
	}
	for _, conn := range []string{"conn-a1", "conn-a2", "conn-a3"} {
		assert.Equal(t, 0, sender.countOfType(conn, isSabotage), "the sender's own side hears nothing")
	}

	assert.ErrorIs(t, m.RelaySabotage(gameID, "mallory", 1), ErrNotParticipant)
	assert.ErrorIs(t, m.RelaySabotage(gameID, "a1", 3), ErrInvalidTeam)
	assert.ErrorIs(t, m.RelaySabotage(uuid.New(), "a1", 1), ErrNotFound)

	// A finished session swallows sabotage without relaying.
	require.NoError(t, m.LeaveGame(gameID, "b1"))
	require.NoError(t, m.RelaySabotage(gameID, "a1", 2))
	assert.Equal(t, 1, sender.countOfType("conn-b1", isSabotage))
}

func TestGetGameState(t *testing.T) {
	m, _, _ := newTestManager()
	gameID := start1v1(t, m)
	require.NoError(t, m.RecordQuestionFinished(gameID, 1, 2, []int{0}))

	state, err := m.GetGameState(gameID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, state.YourTeam)
	assert.Equal(t, 1, state.Progress1)
	assert.Equal(t, 0, state.Progress2)
	assert.False(t, state.Finished)
	assert.Len(t, state.Questions, 3)

	// Non-participants may still observe, with no side marker.
	state, err = m.GetGameState(gameID, "watcher")
	require.NoError(t, err)
	assert.Equal(t, 0, state.YourTeam)

	_, err = m.GetGameState(uuid.New(), "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifyDisconnectNeverEndsMatch(t *testing.T) {
	m, sender, _ := newTestManager()
	gameID := start1v1(t, m)

	m.NotifyDisconnect("alice")

	s, ok := m.Store().Get(gameID)
	require.True(t, ok)
	assert.False(t, s.Finished)

	isNotice := func(msg interface{}) bool {
		_, ok := msg.(protocol.PlayerDisconnectedMessage)
		return ok
	}
	assert.Equal(t, 1, sender.countOfType("conn-bob", isNotice))
	assert.Equal(t, 0, sender.countOfType("conn-alice", isNotice), "the dropped player is not told about themselves")
}

func TestFinishedSessionIsRetainedThenDropped(t *testing.T) {
	m, _, _ := newTestManager()
	m.SetRetention(30 * time.Millisecond)
	gameID := start1v1(t, m)

	require.NoError(t, m.LeaveGame(gameID, "alice"))

	state, err := m.GetGameState(gameID, "bob")
	require.NoError(t, err, "a just-finished game still answers state queries")
	assert.True(t, state.Finished)

	time.Sleep(120 * time.Millisecond)
	_, err = m.GetGameState(gameID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}
