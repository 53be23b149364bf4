// internal/models/player.go
package models

// PlayerInfo is the identity attached to a live connection. It travels inside
// queue entries, teams, rooms and game sessions. The connection id is a
// back-reference used for delivery via the connection registry; entities never
// hold the transport object itself.
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`

	// ConnID identifies the live connection that delivery goes through.
	// Never serialized to clients.
	ConnID string `json:"-"`
}

// Valid reports whether the identity carries the fields required to queue,
// join and receive broadcasts.
func (p PlayerInfo) Valid() bool {
	return p.PlayerID != "" && p.ConnID != ""
}

// ContainsPlayer reports whether the roster holds the given player id.
func ContainsPlayer(roster []PlayerInfo, playerID string) bool {
	for _, p := range roster {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}
