// internal/protocol/server_messages.go
package protocol

import "github.com/t1ww/code-battle/internal/models"

// Error codes carried on error events. They mirror the failure taxonomy:
// malformed input, missing referent, and business-rule violations.
const (
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeInternal   = "internal"
)

// ErrorMessage is sent to the acting client when an operation fails. The
// failed operation never mutates state.
type ErrorMessage struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(event, code, message string) ErrorMessage {
	return ErrorMessage{Type: "error", Event: event, Code: code, Message: message}
}

// AckMessage acknowledges a successful fire-and-forget operation.
type AckMessage struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

func Ack(event string) AckMessage { return AckMessage{Type: "ack", Event: event} }

type QueuedMessage struct {
	Type  string `json:"type"` // "queued"
	Mode  string `json:"mode"`
	Timed bool   `json:"timed"`
}

type TeamCreatedMessage struct {
	Type        string `json:"type"` // "teamCreated"
	TeamID      string `json:"team_id"`
	InviteToken string `json:"invite_token"`
}

type TeamRosterMessage struct {
	Type    string              `json:"type"` // "teamUpdated"
	TeamID  string              `json:"team_id"`
	Members []models.PlayerInfo `json:"members"`
}

type TeamDisbandedMessage struct {
	Type   string `json:"type"` // "teamDisbanded"
	TeamID string `json:"team_id"`
	Reason string `json:"reason,omitempty"`
}

type RoomSnapshotMessage struct {
	Type        string              `json:"type"` // "roomUpdated"
	RoomID      string              `json:"room_id"`
	CreatorID   string              `json:"creator_id"`
	InviteToken string              `json:"invite_token,omitempty"`
	Team1       []models.PlayerInfo `json:"team1"`
	Team2       []models.PlayerInfo `json:"team2"`
}

type RoomClosedMessage struct {
	Type   string `json:"type"` // "roomClosed"
	RoomID string `json:"room_id"`
	Reason string `json:"reason,omitempty"`
}

type SwapPendingMessage struct {
	Type        string `json:"type"` // "swapPending"
	RoomID      string `json:"room_id"`
	RequesterID string `json:"requester_id"`
	TargetTeam  int    `json:"target_team"`
	ExpiresInMS int64  `json:"expires_in_ms"`
}

type SwapResolvedMessage struct {
	Type        string `json:"type"` // "swapCompleted" | "swapRejected" | "swapExpired" | "swapCancelled"
	RoomID      string `json:"room_id"`
	RequesterID string `json:"requester_id"`
	ConfirmerID string `json:"confirmer_id,omitempty"`
}

type CountdownMessage struct {
	Type    string `json:"type"` // "countdown"
	RoomID  string `json:"room_id"`
	Seconds int    `json:"seconds"`
}

type MatchStartedMessage struct {
	Type      string              `json:"type"` // "matchStarted"
	GameID    string              `json:"game_id"`
	Mode      string              `json:"mode"`
	Timed     bool                `json:"timed"`
	YourTeam  int                 `json:"your_team"`
	Team1     []models.PlayerInfo `json:"team1"`
	Team2     []models.PlayerInfo `json:"team2"`
	Questions []models.Question   `json:"questions"`
}

type ProgressMessage struct {
	Type          string `json:"type"` // "progressUpdated"
	GameID        string `json:"game_id"`
	Team          int    `json:"team"`
	QuestionIndex int    `json:"question_index"`
	PassedIndices []int  `json:"passed_indices,omitempty"`
	Progress1     int    `json:"progress1"`
	Progress2     int    `json:"progress2"`
}

type SabotageMessage struct {
	Type   string `json:"type"` // "sabotaged"
	GameID string `json:"game_id"`
	From   int    `json:"from_team"`
}

type DrawVoteMessage struct {
	Type    string `json:"type"` // "drawVoteUpdated"
	GameID  string `json:"game_id"`
	VoterID string `json:"voter_id"`
	Votes   int    `json:"votes"`
	Needed  int    `json:"needed"`
}

type DrawRequestedMessage struct {
	Type   string `json:"type"` // "drawRequested"
	GameID string `json:"game_id"`
}

type ForfeitEnabledMessage struct {
	Type   string `json:"type"` // "forfeitEnabled"
	GameID string `json:"game_id"`
}

type GameEndedMessage struct {
	Type   string `json:"type"` // "gameEnded"
	GameID string `json:"game_id"`
	Winner string `json:"winner"` // "team1", "team2" or "draw"
	Reason string `json:"reason"`
}

// GameStateMessage is the resync snapshot handed to a reconnecting player.
type GameStateMessage struct {
	Type      string              `json:"type"` // "gameState"
	GameID    string              `json:"game_id"`
	Mode      string              `json:"mode"`
	Timed     bool                `json:"timed"`
	YourTeam  int                 `json:"your_team"`
	Team1     []models.PlayerInfo `json:"team1"`
	Team2     []models.PlayerInfo `json:"team2"`
	Questions []models.Question   `json:"questions"`
	Progress1 int                 `json:"progress1"`
	Progress2 int                 `json:"progress2"`
	Finished  bool                `json:"finished"`
	Winner    string              `json:"winner,omitempty"`
}

type PlayerDisconnectedMessage struct {
	Type     string `json:"type"` // "playerDisconnected"
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id"`
}

// CodeResultMessage reports an execution-service run back to the submitter.
type CodeResultMessage struct {
	Type          string       `json:"type"` // "codeResult"
	GameID        string       `json:"game_id"`
	QuestionIndex int          `json:"question_index"`
	Passed        bool         `json:"passed"`
	TotalScore    float64      `json:"total_score"`
	Results       []CaseResult `json:"results"`
}

// CaseResult is one test case outcome. Output carries the sentinel values
// "[Compilation Error]", "[Runtime Error]" and "[Timeout]" on failure.
type CaseResult struct {
	Passed bool   `json:"passed"`
	Output string `json:"output"`
}
