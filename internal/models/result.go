// internal/models/result.go
package models

// MatchResult is the record published for a finished session. The external
// data service consumes these off the result queue and owns all durable
// score-keeping.
type MatchResult struct {
	GameID     string   `json:"game_id"`
	Mode       string   `json:"mode"`
	Timed      bool     `json:"timed"`
	Winner     string   `json:"winner"` // "team1", "team2" or "draw"
	Reason     string   `json:"reason"`
	Team1      []string `json:"team1"` // player ids
	Team2      []string `json:"team2"`
	Progress1  int      `json:"progress1"`
	Progress2  int      `json:"progress2"`
	FinishedAt int64    `json:"finished_at"`
}
