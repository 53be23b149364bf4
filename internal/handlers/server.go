// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/clients"
	"github.com/t1ww/code-battle/internal/connection"
	"github.com/t1ww/code-battle/internal/game"
	"github.com/t1ww/code-battle/internal/invite"
	"github.com/t1ww/code-battle/internal/matchmaking"
	"github.com/t1ww/code-battle/internal/protocol"
	"github.com/t1ww/code-battle/internal/room"
	"github.com/t1ww/code-battle/internal/team"
)

// Server wires every manager together and exposes the message surface. Each
// entity type is owned exclusively by its manager; the server only routes.
type Server struct {
	Log    *logrus.Logger
	Conns  *connection.Registry
	Queues *matchmaking.Manager
	Teams  *team.Registry
	Rooms  *room.Coordinator
	Games  *game.Manager
	Runner *clients.RunnerClient
}

// NewServer assembles the coordination stack. The game manager doubles as
// the MatchStarter for both the matchmaking cycle and room countdowns.
func NewServer(log *logrus.Logger, questions game.QuestionSource, publisher game.ResultPublisher, runner *clients.RunnerClient) *Server {
	conns := connection.NewRegistry(log)
	games := game.NewManager(conns, questions, publisher, log)
	invites := invite.NewRegistry()
	return &Server{
		Log:    log,
		Conns:  conns,
		Queues: matchmaking.NewManager(games, 0, log),
		Teams:  team.NewRegistry(invites, conns, log),
		Rooms:  room.NewCoordinator(invites, conns, games, log),
		Games:  games,
		Runner: runner,
	}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": s.Conns.Count(),
	})
}

// ListRoomsHandler returns the in-memory rooms, for debugging.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Rooms.Snapshots())
}

// errorCode maps a manager error to the wire taxonomy: malformed input,
// missing referent, or business-rule violation.
func errorCode(err error) string {
	switch {
	case errors.Is(err, matchmaking.ErrInvalidEntry),
		errors.Is(err, team.ErrTeamSize),
		errors.Is(err, room.ErrInvalidPlayer),
		errors.Is(err, game.ErrInvalidTeam),
		errors.Is(err, game.ErrInvalidQuestion):
		return protocol.CodeValidation
	case errors.Is(err, team.ErrInvalidInvite),
		errors.Is(err, team.ErrTeamNotFound),
		errors.Is(err, room.ErrInvalidInvite),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, game.ErrNotFound):
		return protocol.CodeNotFound
	case errors.Is(err, matchmaking.ErrAlreadyQueued),
		errors.Is(err, matchmaking.ErrMemberQueued),
		errors.Is(err, team.ErrTeamFull),
		errors.Is(err, team.ErrAlreadyJoined),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrAlreadyInRoom),
		errors.Is(err, room.ErrNotInRoom),
		errors.Is(err, room.ErrSwapPending),
		errors.Is(err, room.ErrNoPendingSwap),
		errors.Is(err, room.ErrNotTargetTeam),
		errors.Is(err, room.ErrNotCreator),
		errors.Is(err, room.ErrUnbalancedTeams),
		errors.Is(err, room.ErrStartInProgress),
		errors.Is(err, game.ErrNotParticipant),
		errors.Is(err, game.ErrForfeitDisabled):
		return protocol.CodeConflict
	default:
		return protocol.CodeInternal
	}
}
