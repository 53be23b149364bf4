// internal/room/room.go
package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/t1ww/code-battle/internal/models"
)

// TeamCapacity is the per-side seat count of a private room.
const TeamCapacity = 3

// PendingSwap is the single outstanding request to exchange the requester
// with a member of the target team. The timer clears it if nobody confirms
// or cancels within the negotiation window.
type PendingSwap struct {
	RequesterID string
	TargetTeam  int // 0-based index into Room.Teams
	timer       *time.Timer
}

// Room is a two-sided private assembly area. Invariant: at most one pending
// swap exists at any time; a second request while one is outstanding is
// rejected without touching state.
type Room struct {
	ID          uuid.UUID
	CreatorID   string
	InviteToken uuid.UUID
	Teams       [2][]models.PlayerInfo
	Pending     *PendingSwap

	startTimer *time.Timer
}

// teamIndexOf returns which side holds the player, or -1.
func (r *Room) teamIndexOf(playerID string) int {
	for i := range r.Teams {
		if models.ContainsPlayer(r.Teams[i], playerID) {
			return i
		}
	}
	return -1
}

// members returns every player across both sides.
func (r *Room) members() []models.PlayerInfo {
	all := make([]models.PlayerInfo, 0, len(r.Teams[0])+len(r.Teams[1]))
	all = append(all, r.Teams[0]...)
	all = append(all, r.Teams[1]...)
	return all
}

// removeFromTeam drops the player from side i, preserving order.
func (r *Room) removeFromTeam(i int, playerID string) {
	kept := r.Teams[i][:0:0]
	for _, p := range r.Teams[i] {
		if p.PlayerID != playerID {
			kept = append(kept, p)
		}
	}
	r.Teams[i] = kept
}

// symmetricMode returns the game mode when the sides are a symmetric 1v1 or
// 3v3 line-up, and "" otherwise.
func (r *Room) symmetricMode() string {
	n1, n2 := len(r.Teams[0]), len(r.Teams[1])
	if n1 != n2 {
		return ""
	}
	switch n1 {
	case 1:
		return "1v1"
	case TeamCapacity:
		return "3v3"
	}
	return ""
}
