// internal/protocol/messages.go
//
// Typed wire payloads for the realtime coordination surface. Every inbound
// event has a dedicated request struct and every outbound notification has a
// dedicated message struct, so the boundary validates whole shapes instead of
// probing loose maps for fields.
package protocol

import (
	"encoding/json"

	"github.com/t1ww/code-battle/internal/models"
)

// Envelope wraps every client -> server message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server event names.
const (
	EventAttach           = "attach"
	EventQueuePlayer      = "queuePlayer"
	EventQueueTeam        = "queueTeam"
	EventCancelQueue      = "cancelQueue"
	EventCancelQueueTeam  = "cancelQueueTeam"
	EventCreateTeam       = "createTeam"
	EventJoinTeam         = "joinTeamWithInvite"
	EventCreateRoom       = "createPrivateRoom"
	EventJoinRoom         = "joinPrivateRoom"
	EventStartRoomGame    = "startPrivateRoomGame"
	EventSwapTeam         = "swapTeam"
	EventConfirmSwap      = "confirmSwap"
	EventRejectSwap       = "rejectSwap"
	EventCancelSwap       = "cancelPendingSwap"
	EventSabotage         = "sabotage"
	EventQuestionFinished = "questionFinished"
	EventVoteDraw         = "voteDraw"
	EventForfeit          = "forfeit"
	EventLeaveGame        = "leaveGame"
	EventGetGameState     = "getGameState"
	EventSubmitCode       = "submitCode"
)

// AttachRequest is the first message a client must send: it binds an
// already-authenticated identity to the connection.
type AttachRequest struct {
	Player models.PlayerInfo `json:"player"`
}

type QueuePlayerRequest struct {
	Mode  string `json:"mode"` // "1v1" or "3v3"
	Timed bool   `json:"timed"`
}

type QueueTeamRequest struct {
	TeamID string `json:"team_id"`
	Timed  bool   `json:"timed"`
}

type CancelQueueRequest struct {
	Timed bool `json:"timed"`
}

type CancelQueueTeamRequest struct {
	TeamID string `json:"team_id"`
	Timed  bool   `json:"timed"`
}

type CreateTeamRequest struct {
	Members []models.PlayerInfo `json:"members"`
}

type JoinTeamRequest struct {
	Token string `json:"token"`
}

type JoinRoomRequest struct {
	Token string `json:"token"`
}

type RoomRequest struct {
	RoomID string `json:"room_id"`
}

type SabotageRequest struct {
	GameID     string `json:"game_id"`
	TargetTeam int    `json:"target_team"` // 1 or 2
}

type QuestionFinishedRequest struct {
	GameID        string `json:"game_id"`
	Team          int    `json:"team"` // 1 or 2
	QuestionIndex int    `json:"question_index"`
	PassedIndices []int  `json:"passed_indices"`
}

type GameRequest struct {
	GameID string `json:"game_id"`
}

type SubmitCodeRequest struct {
	GameID        string `json:"game_id"`
	QuestionIndex int    `json:"question_index"`
	Code          string `json:"code"`
	Language      string `json:"language"`
}
