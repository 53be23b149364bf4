// internal/team/registry.go
package team

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/invite"
	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
)

// MaxTeamSize is the member capacity for 3v3 play.
const MaxTeamSize = 3

var (
	ErrTeamSize      = errors.New("team requires exactly 3 members")
	ErrInvalidInvite = errors.New("invalid or expired invite")
	ErrTeamNotFound  = errors.New("team no longer exists")
	ErrTeamFull      = errors.New("team is full")
	ErrAlreadyJoined = errors.New("player already joined this team")
)

// Sender delivers a message to a single connection.
type Sender interface {
	Send(connID string, msg interface{})
}

// Team is an ephemeral grouping of players awaiting 3v3 matchmaking. The
// first member is the implicit leader; the team disbands when membership
// drops to one or the leader disconnects.
type Team struct {
	ID          uuid.UUID
	Members     []models.PlayerInfo
	InviteToken uuid.UUID
}

// Leader returns the implicit leader (first member).
func (t *Team) Leader() models.PlayerInfo {
	if len(t.Members) == 0 {
		return models.PlayerInfo{}
	}
	return t.Members[0]
}

// Registry owns every live team, keyed by generated id, plus the invite
// tokens that resolve to them.
type Registry struct {
	mu      sync.Mutex
	teams   map[uuid.UUID]*Team
	invites *invite.Registry
	sender  Sender
	log     *logrus.Logger
}

func NewRegistry(invites *invite.Registry, sender Sender, log *logrus.Logger) *Registry {
	return &Registry{
		teams:   make(map[uuid.UUID]*Team),
		invites: invites,
		sender:  sender,
		log:     log,
	}
}

// CreateTeam forms a team from exactly MaxTeamSize members and issues an
// invite token for re-joining. Any other size is rejected: team formation is
// distinct from the seed-then-invite room flow.
func (r *Registry) CreateTeam(members []models.PlayerInfo) (*Team, error) {
	if len(members) != MaxTeamSize {
		return nil, ErrTeamSize
	}
	for _, m := range members {
		if !m.Valid() {
			return nil, ErrTeamSize
		}
	}
	t := &Team{
		ID:      uuid.New(),
		Members: append([]models.PlayerInfo(nil), members...),
	}
	t.InviteToken = r.invites.Create(invite.KindTeam, t.ID)

	r.mu.Lock()
	r.teams[t.ID] = t
	r.mu.Unlock()

	r.log.Infof("team %s created with leader %s", t.ID, t.Leader().PlayerID)
	return t, nil
}

// JoinWithInvite resolves the token and appends the player, then notifies the
// whole roster. The error ladder distinguishes a dead token, a vanished team,
// a full team, and a duplicate join.
func (r *Registry) JoinWithInvite(token uuid.UUID, player models.PlayerInfo) (*Team, error) {
	target, ok := r.invites.Resolve(token)
	if !ok || target.Kind != invite.KindTeam {
		return nil, ErrInvalidInvite
	}

	r.mu.Lock()
	t, ok := r.teams[target.ID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrTeamNotFound
	}
	if models.ContainsPlayer(t.Members, player.PlayerID) {
		r.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	if len(t.Members) >= MaxTeamSize {
		r.mu.Unlock()
		return nil, ErrTeamFull
	}
	t.Members = append(t.Members, player)
	roster := append([]models.PlayerInfo(nil), t.Members...)
	r.mu.Unlock()

	r.broadcastRoster(t.ID, roster)
	r.log.Infof("player %s joined team %s", player.PlayerID, target.ID)
	return t, nil
}

// Get returns the team for an id.
func (r *Registry) Get(id uuid.UUID) (*Team, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	return t, ok
}

// TeamOf locates the team containing a player id, if any.
func (r *Registry) TeamOf(playerID string) (*Team, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if models.ContainsPlayer(t.Members, playerID) {
			return t, true
		}
	}
	return nil, false
}

// RemoveTeam deletes a team unconditionally. Used by the disconnect
// cascade; removing an unknown id is a no-op.
func (r *Registry) RemoveTeam(id uuid.UUID) {
	r.mu.Lock()
	_, ok := r.teams[id]
	delete(r.teams, id)
	r.mu.Unlock()
	if ok {
		r.log.Infof("team %s removed", id)
	}
}

// Disband removes the team and tells every remaining member why.
func (r *Registry) Disband(id uuid.UUID, reason string) {
	r.mu.Lock()
	t, ok := r.teams[id]
	var roster []models.PlayerInfo
	if ok {
		roster = append([]models.PlayerInfo(nil), t.Members...)
		delete(r.teams, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	for _, m := range roster {
		r.sender.Send(m.ConnID, protocol.TeamDisbandedMessage{
			Type:   "teamDisbanded",
			TeamID: id.String(),
			Reason: reason,
		})
	}
	r.log.Infof("team %s disbanded: %s", id, reason)
}

// RemovePlayer takes a player out of their team. The team disbands when the
// leader leaves or when at most one member would remain; otherwise the
// remaining roster is re-broadcast. Returns the team id and whether the team
// survived.
func (r *Registry) RemovePlayer(playerID string) (teamID uuid.UUID, survived bool, found bool) {
	r.mu.Lock()
	var t *Team
	for _, cand := range r.teams {
		if models.ContainsPlayer(cand.Members, playerID) {
			t = cand
			break
		}
	}
	if t == nil {
		r.mu.Unlock()
		return uuid.Nil, false, false
	}
	teamID = t.ID
	isLeader := t.Leader().PlayerID == playerID

	kept := t.Members[:0:0]
	for _, m := range t.Members {
		if m.PlayerID != playerID {
			kept = append(kept, m)
		}
	}
	t.Members = kept

	if isLeader || len(t.Members) <= 1 {
		r.mu.Unlock()
		reason := "not enough members"
		if isLeader {
			reason = "leader left"
		}
		r.Disband(teamID, reason)
		return teamID, false, true
	}

	roster := append([]models.PlayerInfo(nil), t.Members...)
	r.mu.Unlock()
	r.broadcastRoster(teamID, roster)
	return teamID, true, true
}

func (r *Registry) broadcastRoster(teamID uuid.UUID, roster []models.PlayerInfo) {
	msg := protocol.TeamRosterMessage{
		Type:    "teamUpdated",
		TeamID:  teamID.String(),
		Members: roster,
	}
	for _, m := range roster {
		r.sender.Send(m.ConnID, msg)
	}
}
