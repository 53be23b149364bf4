// internal/room/coordinator.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/invite"
	"github.com/t1ww/code-battle/internal/models"
	"github.com/t1ww/code-battle/internal/protocol"
)

var (
	ErrInvalidPlayer   = errors.New("player identity is malformed")
	ErrInvalidInvite   = errors.New("invalid or expired invite")
	ErrRoomNotFound    = errors.New("room no longer exists")
	ErrRoomFull        = errors.New("both teams are full")
	ErrAlreadyInRoom   = errors.New("player already in the room")
	ErrNotInRoom       = errors.New("player is not in the room")
	ErrSwapPending     = errors.New("a swap request is already pending")
	ErrNoPendingSwap   = errors.New("no pending swap to confirm")
	ErrNotTargetTeam   = errors.New("confirmer is not on the target team")
	ErrNotCreator      = errors.New("only the room creator can start the game")
	ErrUnbalancedTeams = errors.New("teams must be a symmetric 1v1 or 3v3")
	ErrStartInProgress = errors.New("a game start is already counting down")
)

// Sender delivers a message to a single connection.
type Sender interface {
	Send(connID string, msg interface{})
}

// GameStarter receives the assembled sides when the countdown completes.
type GameStarter interface {
	StartMatch(mode string, timed bool, side1, side2 []models.PlayerInfo)
}

// Coordinator owns every private room. One lock guards the room map and all
// room state; timer callbacks re-acquire it and re-validate that the state
// they were scheduled against is still current before acting.
type Coordinator struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*Room
	invites *invite.Registry
	sender  Sender
	starter GameStarter
	log     *logrus.Logger

	swapTimeout time.Duration
	startDelay  time.Duration
}

func NewCoordinator(invites *invite.Registry, sender Sender, starter GameStarter, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		rooms:       make(map[uuid.UUID]*Room),
		invites:     invites,
		sender:      sender,
		starter:     starter,
		log:         log,
		swapTimeout: 15 * time.Second,
		startDelay:  3 * time.Second,
	}
}

// SetSwapTimeout overrides the negotiation window. Tests shrink it.
func (c *Coordinator) SetSwapTimeout(d time.Duration) { c.swapTimeout = d }

// SetStartDelay overrides the pre-start countdown length.
func (c *Coordinator) SetStartDelay(d time.Duration) { c.startDelay = d }

// CreateRoom allocates a room seeded with the creator on team1 and issues the
// room invite token.
func (c *Coordinator) CreateRoom(creator models.PlayerInfo) (*Room, error) {
	if !creator.Valid() {
		return nil, ErrInvalidPlayer
	}
	r := &Room{
		ID:        uuid.New(),
		CreatorID: creator.PlayerID,
	}
	r.Teams[0] = []models.PlayerInfo{creator}
	r.InviteToken = c.invites.Create(invite.KindRoom, r.ID)

	c.mu.Lock()
	c.rooms[r.ID] = r
	c.mu.Unlock()

	c.log.Infof("room %s created by %s", r.ID, creator.PlayerID)
	return r, nil
}

// JoinRoom resolves the invite and seats the joiner on whichever side has
// fewer members; ties favor team1. Fails when both sides are at capacity.
func (c *Coordinator) JoinRoom(token uuid.UUID, player models.PlayerInfo) (*Room, error) {
	if !player.Valid() {
		return nil, ErrInvalidPlayer
	}
	target, ok := c.invites.Resolve(token)
	if !ok || target.Kind != invite.KindRoom {
		return nil, ErrInvalidInvite
	}

	c.mu.Lock()
	r, ok := c.rooms[target.ID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if r.teamIndexOf(player.PlayerID) >= 0 {
		c.mu.Unlock()
		return nil, ErrAlreadyInRoom
	}
	side := 0
	if len(r.Teams[1]) < len(r.Teams[0]) {
		side = 1
	}
	if len(r.Teams[side]) >= TeamCapacity {
		c.mu.Unlock()
		return nil, ErrRoomFull
	}
	r.Teams[side] = append(r.Teams[side], player)
	snapshot := c.snapshotLocked(r)
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, snapshot)
	c.log.Infof("player %s joined room %s on team%d", player.PlayerID, r.ID, side+1)
	return r, nil
}

// Get returns the room for an id.
func (c *Coordinator) Get(id uuid.UUID) (*Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	return r, ok
}

// RoomOf locates the room containing the player, if any.
func (c *Coordinator) RoomOf(playerID string) (*Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rooms {
		if r.teamIndexOf(playerID) >= 0 {
			return r, true
		}
	}
	return nil, false
}

// Snapshots returns wire snapshots of every live room, for the debug listing.
func (c *Coordinator) Snapshots() []protocol.RoomSnapshotMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.RoomSnapshotMessage, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, c.snapshotLocked(r))
	}
	return out
}

// RequestSwap moves the requester to the opposing side immediately when a
// seat is free. With both sides full it records the room's single pending
// swap, arms the expiry timer, and notifies the opposing team. A second
// request while one is outstanding is rejected unchanged.
func (c *Coordinator) RequestSwap(roomID uuid.UUID, playerID string) error {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return ErrRoomNotFound
	}
	from := r.teamIndexOf(playerID)
	if from < 0 {
		c.mu.Unlock()
		return ErrNotInRoom
	}
	to := 1 - from

	if len(r.Teams[to]) < TeamCapacity {
		// Free seat: direct move, no negotiation.
		var mover models.PlayerInfo
		for _, p := range r.Teams[from] {
			if p.PlayerID == playerID {
				mover = p
				break
			}
		}
		r.removeFromTeam(from, playerID)
		r.Teams[to] = append(r.Teams[to], mover)
		done := protocol.SwapResolvedMessage{Type: "swapCompleted", RoomID: r.ID.String(), RequesterID: playerID}
		snapshot := c.snapshotLocked(r)
		recipients := r.members()
		c.mu.Unlock()

		c.sendToAll(recipients, done)
		c.sendToAll(recipients, snapshot)
		c.log.Infof("room %s: %s moved directly to team%d", roomID, playerID, to+1)
		return nil
	}

	if r.Pending != nil {
		c.mu.Unlock()
		return ErrSwapPending
	}

	pending := &PendingSwap{RequesterID: playerID, TargetTeam: to}
	pending.timer = time.AfterFunc(c.swapTimeout, func() { c.expireSwap(roomID, pending) })
	r.Pending = pending

	notice := protocol.SwapPendingMessage{
		Type:        "swapPending",
		RoomID:      r.ID.String(),
		RequesterID: playerID,
		TargetTeam:  to + 1,
		ExpiresInMS: c.swapTimeout.Milliseconds(),
	}
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, notice)
	c.log.Infof("room %s: swap pending from %s toward team%d", roomID, playerID, to+1)
	return nil
}

// expireSwap is the timer callback. The room may have been deleted and the
// swap may have been resolved since scheduling, so it only acts when the
// recorded pending swap is still the one it was armed for.
func (c *Coordinator) expireSwap(roomID uuid.UUID, pending *PendingSwap) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok || r.Pending != pending {
		c.mu.Unlock()
		return
	}
	r.Pending = nil
	lapsed := protocol.SwapResolvedMessage{Type: "swapExpired", RoomID: r.ID.String(), RequesterID: pending.RequesterID}
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, lapsed)
	c.log.Infof("room %s: pending swap from %s expired", roomID, pending.RequesterID)
}

// ConfirmSwap exchanges the confirmer and the requester atomically. Only a
// member of the recorded target team may confirm.
func (c *Coordinator) ConfirmSwap(roomID uuid.UUID, confirmerID string) error {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return ErrRoomNotFound
	}
	pending := r.Pending
	if pending == nil {
		c.mu.Unlock()
		return ErrNoPendingSwap
	}
	if r.teamIndexOf(confirmerID) != pending.TargetTeam {
		c.mu.Unlock()
		return ErrNotTargetTeam
	}

	reqSide := 1 - pending.TargetTeam
	var requester, confirmer models.PlayerInfo
	for _, p := range r.Teams[reqSide] {
		if p.PlayerID == pending.RequesterID {
			requester = p
		}
	}
	for _, p := range r.Teams[pending.TargetTeam] {
		if p.PlayerID == confirmerID {
			confirmer = p
		}
	}
	if requester.PlayerID == "" {
		// Requester left between request and confirmation; drop the swap.
		pending.timer.Stop()
		r.Pending = nil
		c.mu.Unlock()
		return ErrNoPendingSwap
	}

	r.removeFromTeam(reqSide, requester.PlayerID)
	r.removeFromTeam(pending.TargetTeam, confirmerID)
	r.Teams[pending.TargetTeam] = append(r.Teams[pending.TargetTeam], requester)
	r.Teams[reqSide] = append(r.Teams[reqSide], confirmer)

	pending.timer.Stop()
	r.Pending = nil

	done := protocol.SwapResolvedMessage{
		Type:        "swapCompleted",
		RoomID:      r.ID.String(),
		RequesterID: requester.PlayerID,
		ConfirmerID: confirmerID,
	}
	snapshot := c.snapshotLocked(r)
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, done)
	c.sendToAll(recipients, snapshot)
	c.log.Infof("room %s: swap confirmed, %s <-> %s", roomID, requester.PlayerID, confirmerID)
	return nil
}

// RejectSwap clears the pending swap when the actor is the requester or a
// member of the target team. Anyone else is a no-op.
func (c *Coordinator) RejectSwap(roomID uuid.UUID, actorID string) {
	c.clearPending(roomID, actorID, "swapRejected")
}

// CancelPendingSwap is the requester withdrawing; same authorization rule.
func (c *Coordinator) CancelPendingSwap(roomID uuid.UUID, actorID string) {
	c.clearPending(roomID, actorID, "swapCancelled")
}

func (c *Coordinator) clearPending(roomID uuid.UUID, actorID, msgType string) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok || r.Pending == nil {
		c.mu.Unlock()
		return
	}
	pending := r.Pending
	authorized := pending.RequesterID == actorID || r.teamIndexOf(actorID) == pending.TargetTeam
	if !authorized {
		c.mu.Unlock()
		return
	}
	pending.timer.Stop()
	r.Pending = nil
	resolved := protocol.SwapResolvedMessage{Type: msgType, RoomID: r.ID.String(), RequesterID: pending.RequesterID}
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, resolved)
	c.log.Infof("room %s: pending swap from %s cleared (%s by %s)", roomID, pending.RequesterID, msgType, actorID)
}

// StartGame begins the countdown toward handing both sides to the game
// manager. Creator-only, and only for a symmetric 1v1 or 3v3 line-up.
func (c *Coordinator) StartGame(roomID uuid.UUID, requesterID string) error {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return ErrRoomNotFound
	}
	if r.CreatorID != requesterID {
		c.mu.Unlock()
		return ErrNotCreator
	}
	mode := r.symmetricMode()
	if mode == "" {
		c.mu.Unlock()
		return ErrUnbalancedTeams
	}
	if r.startTimer != nil {
		c.mu.Unlock()
		return ErrStartInProgress
	}

	seconds := int(c.startDelay / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	countdown := protocol.CountdownMessage{Type: "countdown", RoomID: r.ID.String(), Seconds: seconds}
	r.startTimer = time.AfterFunc(c.startDelay, func() { c.launch(roomID, mode) })
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, countdown)
	c.log.Infof("room %s: game starting in %ds (%s)", roomID, seconds, mode)
	return nil
}

// launch fires after the countdown. It re-validates that the room still
// exists and still holds a symmetric line-up before starting the match.
func (c *Coordinator) launch(roomID uuid.UUID, mode string) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return
	}
	r.startTimer = nil
	if r.symmetricMode() != mode {
		c.mu.Unlock()
		c.log.Warnf("room %s: line-up changed during countdown, start aborted", roomID)
		return
	}
	side1 := append([]models.PlayerInfo(nil), r.Teams[0]...)
	side2 := append([]models.PlayerInfo(nil), r.Teams[1]...)
	c.mu.Unlock()

	c.starter.StartMatch(mode, false, side1, side2)
}

// RemovePlayer takes a player out of whichever room holds them, cancelling
// any pending swap that names them. A departing creator deletes the room;
// otherwise the remaining members get the updated roster. Reports whether the
// player was found and whether they were the creator.
func (c *Coordinator) RemovePlayer(playerID string) (roomID uuid.UUID, wasCreator, found bool) {
	c.mu.Lock()
	var r *Room
	for _, cand := range c.rooms {
		if cand.teamIndexOf(playerID) >= 0 {
			r = cand
			break
		}
	}
	if r == nil {
		c.mu.Unlock()
		return uuid.Nil, false, false
	}
	roomID = r.ID

	// A pending swap naming the departing player (as requester or as a
	// possible confirmer on the target team) cannot complete any more.
	var cleared *PendingSwap
	if p := r.Pending; p != nil {
		if p.RequesterID == playerID || r.teamIndexOf(playerID) == p.TargetTeam {
			p.timer.Stop()
			r.Pending = nil
			cleared = p
		}
	}

	side := r.teamIndexOf(playerID)
	r.removeFromTeam(side, playerID)

	if r.CreatorID == playerID {
		if r.startTimer != nil {
			r.startTimer.Stop()
			r.startTimer = nil
		}
		delete(c.rooms, r.ID)
		closed := protocol.RoomClosedMessage{Type: "roomClosed", RoomID: r.ID.String(), Reason: "creator left"}
		recipients := r.members()
		c.mu.Unlock()

		c.sendToAll(recipients, closed)
		c.log.Infof("room %s deleted: creator %s left", roomID, playerID)
		return roomID, true, true
	}

	var msgs []interface{}
	if cleared != nil {
		msgs = append(msgs, protocol.SwapResolvedMessage{Type: "swapCancelled", RoomID: r.ID.String(), RequesterID: cleared.RequesterID})
	}
	msgs = append(msgs, c.snapshotLocked(r))
	recipients := r.members()
	c.mu.Unlock()

	for _, m := range msgs {
		c.sendToAll(recipients, m)
	}
	c.log.Infof("room %s: player %s removed", roomID, playerID)
	return roomID, false, true
}

// DeleteRoom removes a room outright, stopping its timers.
func (c *Coordinator) DeleteRoom(roomID uuid.UUID) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if r.Pending != nil {
		r.Pending.timer.Stop()
		r.Pending = nil
	}
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
	delete(c.rooms, roomID)
	closed := protocol.RoomClosedMessage{Type: "roomClosed", RoomID: r.ID.String()}
	recipients := r.members()
	c.mu.Unlock()

	c.sendToAll(recipients, closed)
	c.log.Infof("room %s deleted", roomID)
}

func (c *Coordinator) snapshotLocked(r *Room) protocol.RoomSnapshotMessage {
	return protocol.RoomSnapshotMessage{
		Type:        "roomUpdated",
		RoomID:      r.ID.String(),
		CreatorID:   r.CreatorID,
		InviteToken: r.InviteToken.String(),
		Team1:       append([]models.PlayerInfo(nil), r.Teams[0]...),
		Team2:       append([]models.PlayerInfo(nil), r.Teams[1]...),
	}
}

func (c *Coordinator) sendToAll(players []models.PlayerInfo, msg interface{}) {
	for _, p := range players {
		c.sender.Send(p.ConnID, msg)
	}
}
