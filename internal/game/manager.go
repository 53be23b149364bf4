// internal/game/manager.go
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
)

var (
	ErrNotFound        = errors.New("game no longer exists")
	ErrNotParticipant  = errors.New("player is not in this game")
	ErrInvalidTeam     = errors.New("team must be 1 or 2")
	ErrInvalidQuestion = errors.New("question index out of range")
	ErrForfeitDisabled = errors.New("forfeit is not enabled yet")
)

// Sender delivers a message to a single connection.
type Sender interface {
	Send(connID string, msg interface{})
}

// QuestionSource supplies the ordered question set for a new match.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, count int, level string) ([]models.Question, error)
}

// ResultPublisher hands a finished match record to the external data service.
type ResultPublisher interface {
	PublishMatchResult(ctx context.Context, result models.MatchResult) error
}

// Manager owns every active session. It implements the MatchStarter contract
// consumed by the matchmaking cycle and the room coordinator.
type Manager struct {
	store     *Store
	sender    Sender
	questions QuestionSource
	publisher ResultPublisher
	log       *logrus.Logger

	questionsPerMatch int
	drawTimeout       time.Duration
	retention         time.Duration
}

func NewManager(sender Sender, questions QuestionSource, publisher ResultPublisher, log *logrus.Logger) *Manager {
	return &Manager{
		store:             NewStore(),
		sender:            sender,
		questions:         questions,
		publisher:         publisher,
		log:               log,
		questionsPerMatch: 3,
		drawTimeout:       15 * time.Second,
		retention:         time.Minute,
	}
}

// SetDrawTimeout overrides the draw-vote window. Tests shrink it.
func (m *Manager) SetDrawTimeout(d time.Duration) { m.drawTimeout = d }

// SetRetention overrides how long finished sessions linger for state queries.
func (m *Manager) SetRetention(d time.Duration) { m.retention = d }

// SetQuestionsPerMatch overrides the question count per match.
func (m *Manager) SetQuestionsPerMatch(n int) {
	if n > 0 {
		m.questionsPerMatch = n
	}
}

// Store exposes the session store for state queries and tests.
func (m *Manager) Store() *Store { return m.store }

// StartMatch snapshots both sides into a new session, fetches the question
// set, and notifies every participant. Called from the matchmaking cycle or
// a room countdown, never while another entity's lock is held; the question
// fetch therefore blocks only the calling goroutine. A provider failure
// aborts the match with an error notice rather than starting empty.
func (m *Manager) StartMatch(mode string, timed bool, side1, side2 []models.PlayerInfo) {
	level := "normal"
	if timed {
		level = "timed"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	questions, err := m.questions.FetchQuestions(ctx, m.questionsPerMatch, level)
	cancel()
	if err != nil {
		m.log.Errorf("game: question fetch failed, match aborted: %v", err)
		notice := protocol.NewError("matchStart", protocol.CodeInternal, "could not fetch questions, match aborted")
		for _, p := range append(append([]models.PlayerInfo(nil), side1...), side2...) {
			m.sender.Send(p.ConnID, notice)
		}
		return
	}

	s := &Session{
		ID:        uuid.New(),
		Mode:      mode,
		Timed:     timed,
		Questions: questions,
		DrawVotes: make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	s.Teams[0] = append([]models.PlayerInfo(nil), side1...)
	s.Teams[1] = append([]models.PlayerInfo(nil), side2...)
	s.Passed[0] = make([]bool, len(questions))
	s.Passed[1] = make([]bool, len(questions))
	m.store.Add(s)

	for i := range s.Teams {
		for _, p := range s.Teams[i] {
			m.sender.Send(p.ConnID, protocol.MatchStartedMessage{
				Type:      "matchStarted",
				GameID:    s.ID.String(),
				Mode:      mode,
				Timed:     timed,
				YourTeam:  i + 1,
				Team1:     s.Teams[0],
				Team2:     s.Teams[1],
				Questions: questions,
			})
		}
	}
	m.log.Infof("game %s started (%s, timed=%v, %d questions)", s.ID, mode, timed, len(questions))
}

// RelaySabotage forwards a sabotage to the target team's members only. No
// state changes; a finished session swallows it.
func (m *Manager) RelaySabotage(gameID uuid.UUID, senderID string, targetTeam int) error {
	s, ok := m.store.Get(gameID)
	if !ok {
		return ErrNotFound
	}
	if targetTeam != 1 && targetTeam != 2 {
		return ErrInvalidTeam
	}

	s.mu.Lock()
	if s.Finished {
		s.mu.Unlock()
		return nil
	}
	from := s.teamIndexOf(senderID)
	if from < 0 {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	targets := append([]models.PlayerInfo(nil), s.Teams[targetTeam-1]...)
	s.mu.Unlock()

	msg := protocol.SabotageMessage{Type: "sabotaged", GameID: gameID.String(), From: from + 1}
	for _, p := range targets {
		m.sender.Send(p.ConnID, msg)
	}
	return nil
}

// RecordQuestionFinished marks a question cleared for the team, bumps its
// monotonic progress counter, broadcasts the tally, and checks termination.
// Once finished the session ignores further reports.
func (m *Manager) RecordQuestionFinished(gameID uuid.UUID, team, questionIndex int, passedIndices []int) error {
	s, ok := m.store.Get(gameID)
	if !ok {
		return ErrNotFound
	}
	if team != 1 && team != 2 {
		return ErrInvalidTeam
	}

	s.mu.Lock()
	if s.Finished {
		s.mu.Unlock()
		return nil
	}
	if questionIndex < 0 || questionIndex >= len(s.Questions) {
		s.mu.Unlock()
		return ErrInvalidQuestion
	}
	ti := team - 1
	if !s.Passed[ti][questionIndex] {
		s.Passed[ti][questionIndex] = true
		s.Progress[ti]++
	}
	progress := protocol.ProgressMessage{
		Type:          "progressUpdated",
		GameID:        gameID.String(),
		Team:          team,
		QuestionIndex: questionIndex,
		PassedIndices: passedIndices,
		Progress1:     s.Progress[0],
		Progress2:     s.Progress[1],
	}
	recipients := s.participants()

	required := len(s.Questions)
	var winner string
	switch {
	case s.Progress[0] >= required && s.Progress[1] >= required:
		winner = "draw"
	case s.Progress[ti] >= required:
		winner = teamName(ti)
	}
	var finishMsgs []interface{}
	if winner != "" {
		finishMsgs = m.finishLocked(s, winner, "questions completed")
	}
	s.mu.Unlock()

	for _, p := range recipients {
		m.sender.Send(p.ConnID, progress)
	}
	m.deliverFinish(recipients, finishMsgs)
	return nil
}

// VoteDraw adds the player to the draw-vote set (idempotent per player),
// broadcasts the tally, and tells the opposing team a draw was asked for.
// The session resolves as a draw exactly when every participant has voted.
// The first vote arms a timer; if quorum is not reached before it fires,
// forfeiting becomes permitted but the game continues.
func (m *Manager) VoteDraw(gameID uuid.UUID, playerID string) error {
	s, ok := m.store.Get(gameID)
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	if s.Finished {
		s.mu.Unlock()
		return nil
	}
	ti := s.teamIndexOf(playerID)
	if ti < 0 {
		s.mu.Unlock()
		return ErrNotParticipant
	}

	firstVote := len(s.DrawVotes) == 0
	s.DrawVotes[playerID] = struct{}{}

	tally := protocol.DrawVoteMessage{
		Type:    "drawVoteUpdated",
		GameID:  gameID.String(),
		VoterID: playerID,
		Votes:   len(s.DrawVotes),
		Needed:  s.totalPlayers(),
	}
	recipients := s.participants()
	opposing := append([]models.PlayerInfo(nil), s.Teams[1-ti]...)

	var finishMsgs []interface{}
	if len(s.DrawVotes) >= s.totalPlayers() {
		finishMsgs = m.finishLocked(s, "draw", "all players voted to draw")
	} else if firstVote {
		var timer *time.Timer
		timer = time.AfterFunc(m.drawTimeout, func() { m.drawTimedOut(gameID, timer) })
		s.drawTimer = timer
	}
	s.mu.Unlock()

	for _, p := range recipients {
		m.sender.Send(p.ConnID, tally)
	}
	if finishMsgs == nil {
		req := protocol.DrawRequestedMessage{Type: "drawRequested", GameID: gameID.String()}
		for _, p := range opposing {
			m.sender.Send(p.ConnID, req)
		}
	}
	m.deliverFinish(recipients, finishMsgs)
	return nil
}

// drawTimedOut fires when the draw vote fails to reach quorum in time. The
// session may have finished or the timer may have been superseded since it
// was armed, so both are re-checked under the lock.
func (m *Manager) drawTimedOut(gameID uuid.UUID, timer *time.Timer) {
	s, ok := m.store.Get(gameID)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.Finished || s.drawTimer != timer {
		s.mu.Unlock()
		return
	}
	s.drawTimer = nil
	s.ForfeitEnabled = true
	recipients := s.participants()
	s.mu.Unlock()

	msg := protocol.ForfeitEnabledMessage{Type: "forfeitEnabled", GameID: gameID.String()}
	for _, p := range recipients {
		m.sender.Send(p.ConnID, msg)
	}
	m.log.Infof("game %s: draw vote lapsed, forfeit enabled", gameID)
}

// Forfeit ends the game in the opposing team's favor, but only after the
// forfeit gate opened (a failed draw quorum).
func (m *Manager) Forfeit(gameID uuid.UUID, playerID string) error {
	return m.concede(gameID, playerID, true)
}

// LeaveGame is an unconditional forfeit by the leaving player's team.
func (m *Manager) LeaveGame(gameID uuid.UUID, playerID string) error {
	return m.concede(gameID, playerID, false)
}

func (m *Manager) concede(gameID uuid.UUID, playerID string, gated bool) error {
	s, ok := m.store.Get(gameID)
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	if s.Finished {
		s.mu.Unlock()
		return nil
	}
	ti := s.teamIndexOf(playerID)
	if ti < 0 {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if gated && !s.ForfeitEnabled {
		s.mu.Unlock()
		return ErrForfeitDisabled
	}
	reason := "forfeit"
	if !gated {
		reason = "player left"
	}
	finishMsgs := m.finishLocked(s, teamName(1-ti), reason)
	recipients := s.participants()
	s.mu.Unlock()

	m.deliverFinish(recipients, finishMsgs)
	return nil
}

// GetGameState returns a read-only snapshot for reconnection resync.
func (m *Manager) GetGameState(gameID uuid.UUID, playerID string) (protocol.GameStateMessage, error) {
	s, ok := m.store.Get(gameID)
	if !ok {
		return protocol.GameStateMessage{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	yourTeam := 0
	if ti := s.teamIndexOf(playerID); ti >= 0 {
		yourTeam = ti + 1
	}
	return protocol.GameStateMessage{
		Type:      "gameState",
		GameID:    s.ID.String(),
		Mode:      s.Mode,
		Timed:     s.Timed,
		YourTeam:  yourTeam,
		Team1:     append([]models.PlayerInfo(nil), s.Teams[0]...),
		Team2:     append([]models.PlayerInfo(nil), s.Teams[1]...),
		Questions: s.Questions,
		Progress1: s.Progress[0],
		Progress2: s.Progress[1],
		Finished:  s.Finished,
		Winner:    s.Winner,
	}, nil
}

// NotifyDisconnect tells the other participants of every session holding the
// player that they dropped. Disconnection alone never ends a match; only
// leaveGame or forfeit do.
func (m *Manager) NotifyDisconnect(playerID string) {
	for _, s := range m.store.ForPlayer(playerID) {
		s.mu.Lock()
		recipients := s.participants()
		gameID := s.ID
		s.mu.Unlock()
		msg := protocol.PlayerDisconnectedMessage{Type: "playerDisconnected", GameID: gameID.String(), PlayerID: playerID}
		for _, p := range recipients {
			if p.PlayerID != playerID {
				m.sender.Send(p.ConnID, msg)
			}
		}
	}
}

// finishLocked flips the session to its terminal state. Caller holds s.mu.
// The returned messages are delivered after the lock is released.
func (m *Manager) finishLocked(s *Session, winner, reason string) []interface{} {
	s.Finished = true
	s.Winner = winner
	if s.drawTimer != nil {
		s.drawTimer.Stop()
		s.drawTimer = nil
	}

	result := models.MatchResult{
		GameID:     s.ID.String(),
		Mode:       s.Mode,
		Timed:      s.Timed,
		Winner:     winner,
		Reason:     reason,
		Team1:      playerIDs(s.Teams[0]),
		Team2:      playerIDs(s.Teams[1]),
		Progress1:  s.Progress[0],
		Progress2:  s.Progress[1],
		FinishedAt: time.Now().Unix(),
	}
	go m.publishResult(result)

	id := s.ID
	time.AfterFunc(m.retention, func() { m.store.Delete(id) })

	m.log.Infof("game %s finished: winner=%s (%s)", s.ID, winner, reason)
	return []interface{}{protocol.GameEndedMessage{
		Type:   "gameEnded",
		GameID: s.ID.String(),
		Winner: winner,
		Reason: reason,
	}}
}

func (m *Manager) deliverFinish(recipients []models.PlayerInfo, msgs []interface{}) {
	for _, msg := range msgs {
		for _, p := range recipients {
			m.sender.Send(p.ConnID, msg)
		}
	}
}

// publishResult hands the record to the data service queue, best effort.
func (m *Manager) publishResult(result models.MatchResult) {
	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.publisher.PublishMatchResult(ctx, result); err != nil {
		m.log.Warnf("game %s: result publish failed: %v", result.GameID, err)
	}
}
