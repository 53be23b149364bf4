// internal/handlers/dispatch.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/t1ww/code-battle/internal/matchmaking"
	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
	"github.com/t1ww/code-battle/internal/team"
)

var errBadPayload = errors.New("malformed payload")

// dispatch routes one inbound envelope to its owning manager and reports the
// outcome to the acting client. Failed operations never mutate state; they
// degrade to an error event.
func (s *Server) dispatch(connID string, player models.PlayerInfo, env protocol.Envelope) {
	var err error
	switch env.Event {
	case protocol.EventQueuePlayer:
		err = s.queuePlayer(connID, player, env.Data)
	case protocol.EventQueueTeam:
		err = s.queueTeam(connID, player, env.Data)
	case protocol.EventCancelQueue:
		err = s.cancelQueue(connID, player, env.Data)
	case protocol.EventCancelQueueTeam:
		err = s.cancelQueueTeam(connID, env.Data)
	case protocol.EventCreateTeam:
		err = s.createTeam(connID, env.Data)
	case protocol.EventJoinTeam:
		err = s.joinTeam(connID, player, env.Data)
	case protocol.EventCreateRoom:
		err = s.createRoom(connID, player)
	case protocol.EventJoinRoom:
		err = s.joinRoom(connID, player, env.Data)
	case protocol.EventStartRoomGame:
		err = s.startRoomGame(connID, player, env.Data)
	case protocol.EventSwapTeam:
		err = s.swapTeam(connID, player, env.Data)
	case protocol.EventConfirmSwap:
		err = s.confirmSwap(connID, player, env.Data)
	case protocol.EventRejectSwap:
		err = s.resolveSwap(connID, player, env.Data, false)
	case protocol.EventCancelSwap:
		err = s.resolveSwap(connID, player, env.Data, true)
	case protocol.EventSabotage:
		err = s.sabotage(connID, player, env.Data)
	case protocol.EventQuestionFinished:
		err = s.questionFinished(connID, env.Data)
	case protocol.EventVoteDraw:
		err = s.gameAction(connID, player, env.Data, s.Games.VoteDraw)
	case protocol.EventForfeit:
		err = s.gameAction(connID, player, env.Data, s.Games.Forfeit)
	case protocol.EventLeaveGame:
		err = s.gameAction(connID, player, env.Data, s.Games.LeaveGame)
	case protocol.EventGetGameState:
		err = s.getGameState(connID, player, env.Data)
	case protocol.EventSubmitCode:
		err = s.submitCode(connID, player, env.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", errBadPayload, env.Event)
	}
	if err != nil {
		code := errorCode(err)
		if errors.Is(err, errBadPayload) {
			code = protocol.CodeValidation
		}
		s.Conns.Send(connID, protocol.NewError(env.Event, code, err.Error()))
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", errBadPayload, s)
	}
	return id, nil
}

func (s *Server) queuePlayer(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.QueuePlayerRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.Mode == "" {
		req.Mode = matchmaking.Mode1v1
	}
	err := s.Queues.Enqueue(&matchmaking.Entry{
		ID:      player.PlayerID,
		Mode:    req.Mode,
		Timed:   req.Timed,
		Players: []models.PlayerInfo{player},
	})
	if err != nil {
		return err
	}
	s.Conns.Send(connID, protocol.QueuedMessage{Type: "queued", Mode: req.Mode, Timed: req.Timed})
	return nil
}

func (s *Server) queueTeam(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.QueueTeamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	teamID, err := parseID(req.TeamID)
	if err != nil {
		return err
	}
	t, ok := s.Teams.Get(teamID)
	if !ok {
		return team.ErrTeamNotFound
	}
	if !models.ContainsPlayer(t.Members, player.PlayerID) {
		return fmt.Errorf("%w: not a member of team %s", errBadPayload, req.TeamID)
	}
	err = s.Queues.Enqueue(&matchmaking.Entry{
		ID:      t.ID.String(),
		Mode:    matchmaking.Mode3v3,
		Timed:   req.Timed,
		Players: append([]models.PlayerInfo(nil), t.Members...),
	})
	if err != nil {
		return err
	}
	msg := protocol.QueuedMessage{Type: "queued", Mode: matchmaking.Mode3v3, Timed: req.Timed}
	for _, m := range t.Members {
		s.Conns.Send(m.ConnID, msg)
	}
	return nil
}

func (s *Server) cancelQueue(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.CancelQueueRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	s.Queues.Cancel(player.PlayerID, matchmaking.Mode1v1, req.Timed)
	s.Conns.Send(connID, protocol.Ack(protocol.EventCancelQueue))
	return nil
}

func (s *Server) cancelQueueTeam(connID string, data json.RawMessage) error {
	var req protocol.CancelQueueTeamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	s.Queues.Cancel(req.TeamID, matchmaking.Mode3v3, req.Timed)
	s.Conns.Send(connID, protocol.Ack(protocol.EventCancelQueueTeam))
	return nil
}

// createTeam resolves each listed member to a live connection; forming a
// team with an offline member is a validation failure.
func (s *Server) createTeam(connID string, data json.RawMessage) error {
	var req protocol.CreateTeamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	members := make([]models.PlayerInfo, 0, len(req.Members))
	for _, m := range req.Members {
		conn, ok := s.Conns.FindByPlayer(m.PlayerID)
		if !ok {
			return fmt.Errorf("%w: member %q is not connected", errBadPayload, m.PlayerID)
		}
		members = append(members, conn.Player)
	}
	t, err := s.Teams.CreateTeam(members)
	if err != nil {
		return err
	}
	msg := protocol.TeamCreatedMessage{
		Type:        "teamCreated",
		TeamID:      t.ID.String(),
		InviteToken: t.InviteToken.String(),
	}
	for _, m := range t.Members {
		s.Conns.Send(m.ConnID, msg)
	}
	return nil
}

func (s *Server) joinTeam(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.JoinTeamRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	token, err := parseID(req.Token)
	if err != nil {
		return err
	}
	if _, err := s.Teams.JoinWithInvite(token, player); err != nil {
		return err
	}
	s.Conns.Send(connID, protocol.Ack(protocol.EventJoinTeam))
	return nil
}

func (s *Server) createRoom(connID string, player models.PlayerInfo) error {
	r, err := s.Rooms.CreateRoom(player)
	if err != nil {
		return err
	}
	s.Conns.Send(connID, protocol.RoomSnapshotMessage{
		Type:        "roomUpdated",
		RoomID:      r.ID.String(),
		CreatorID:   r.CreatorID,
		InviteToken: r.InviteToken.String(),
		Team1:       r.Teams[0],
		Team2:       r.Teams[1],
	})
	return nil
}

func (s *Server) joinRoom(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.JoinRoomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	token, err := parseID(req.Token)
	if err != nil {
		return err
	}
	if _, err := s.Rooms.JoinRoom(token, player); err != nil {
		return err
	}
	return nil
}

func (s *Server) startRoomGame(connID string, player models.PlayerInfo, data json.RawMessage) error {
	roomID, err := s.roomID(data)
	if err != nil {
		return err
	}
	return s.Rooms.StartGame(roomID, player.PlayerID)
}

func (s *Server) swapTeam(connID string, player models.PlayerInfo, data json.RawMessage) error {
	roomID, err := s.roomID(data)
	if err != nil {
		return err
	}
	return s.Rooms.RequestSwap(roomID, player.PlayerID)
}

func (s *Server) confirmSwap(connID string, player models.PlayerInfo, data json.RawMessage) error {
	roomID, err := s.roomID(data)
	if err != nil {
		return err
	}
	return s.Rooms.ConfirmSwap(roomID, player.PlayerID)
}

// resolveSwap covers reject and cancel; both are no-ops for anyone other
// than the requester or a target-team member.
func (s *Server) resolveSwap(connID string, player models.PlayerInfo, data json.RawMessage, cancel bool) error {
	roomID, err := s.roomID(data)
	if err != nil {
		return err
	}
	if cancel {
		s.Rooms.CancelPendingSwap(roomID, player.PlayerID)
		s.Conns.Send(connID, protocol.Ack(protocol.EventCancelSwap))
	} else {
		s.Rooms.RejectSwap(roomID, player.PlayerID)
		s.Conns.Send(connID, protocol.Ack(protocol.EventRejectSwap))
	}
	return nil
}

func (s *Server) roomID(data json.RawMessage) (uuid.UUID, error) {
	var req protocol.RoomRequest
	if err := decode(data, &req); err != nil {
		return uuid.Nil, err
	}
	return parseID(req.RoomID)
}

func (s *Server) sabotage(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.SabotageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	gameID, err := parseID(req.GameID)
	if err != nil {
		return err
	}
	return s.Games.RelaySabotage(gameID, player.PlayerID, req.TargetTeam)
}

func (s *Server) questionFinished(connID string, data json.RawMessage) error {
	var req protocol.QuestionFinishedRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	gameID, err := parseID(req.GameID)
	if err != nil {
		return err
	}
	return s.Games.RecordQuestionFinished(gameID, req.Team, req.QuestionIndex, req.PassedIndices)
}

func (s *Server) gameAction(connID string, player models.PlayerInfo, data json.RawMessage, action func(uuid.UUID, string) error) error {
	var req protocol.GameRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	gameID, err := parseID(req.GameID)
	if err != nil {
		return err
	}
	return action(gameID, player.PlayerID)
}

func (s *Server) getGameState(connID string, player models.PlayerInfo, data json.RawMessage) error {
	var req protocol.GameRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	gameID, err := parseID(req.GameID)
	if err != nil {
		return err
	}
	state, err := s.Games.GetGameState(gameID, player.PlayerID)
	if err != nil {
		return err
	}
	s.Conns.Send(connID, state)
	return nil
}
