// internal/handlers/submit.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/t1ww/code-battle/internal/clients"
	"github.com/t1ww/code-battle/internal/game"
	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
)

// submitCode forwards a player's source to the execution sandbox. The run
// happens on its own goroutine so a slow sandbox never blocks the read loop;
// the verdict comes back as a private codeResult event, and a fully passed
// run is recorded as a finished question for the submitter's team.
func (s *Server) submitCode(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.SubmitCodeRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	gameID, err := parseID(req.GameID)
	if err != nil {
		return err
	}
	if s.Runner == nil {
		return fmt.Errorf("code execution is not configured")
	}

	state, err := s.Games.GetGameState(gameID, player.PlayerID)
	if err != nil {
		return err
	}
	if state.YourTeam == 0 {
		return game.ErrNotParticipant
	}
	if req.QuestionIndex < 0 || req.QuestionIndex >= len(state.Questions) {
		return game.ErrInvalidQuestion
	}
	question := state.Questions[req.QuestionIndex]

	go s.runSubmission(connID, gameID, state.YourTeam, req, question)
	return nil
}

func (s *Server) runSubmission(connID string, gameID uuid.UUID, team int, req protocol.SubmitCodeRequest, question models.Question) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.Runner.Run(ctx, clients.RunRequest{
		Code:      req.Code,
		TestCases: question.TestCases,
		Language:  req.Language,
		ScorePct:  100,
	})
	if err != nil {
		s.Log.Warnf("game %s: code run failed: %v", gameID, err)
		s.Conns.Send(connID, protocol.NewError(protocol.EventSubmitCode, protocol.CodeInternal, "code execution failed"))
		return
	}

	verdict := protocol.CodeResultMessage{
		Type:          "codeResult",
		GameID:        gameID.String(),
		QuestionIndex: req.QuestionIndex,
		Passed:        result.Passed,
		TotalScore:    result.TotalScore,
		Results:       make([]protocol.CaseResult, 0, len(result.Results)),
	}
	var passedIndices []int
	for i, r := range result.Results {
		verdict.Results = append(verdict.Results, protocol.CaseResult{Passed: r.Passed, Output: r.Output})
		if r.Passed {
			passedIndices = append(passedIndices, i)
		}
	}
	s.Conns.Send(connID, verdict)

	if result.Passed {
		if err := s.Games.RecordQuestionFinished(gameID, team, req.QuestionIndex, passedIndices); err != nil {
			s.Log.Warnf("game %s: recording finished question failed: %v", gameID, err)
		}
	}
}
