// internal/handlers/cascade.go
package handlers

// HandleDisconnect unwinds every piece of shared state a lost connection
// touched, in a fixed order: matchmaking entries, team membership, room
// membership (with any pending swap naming the player), then match broadcast
// groups. A step finding its state already gone is logged by the owning
// manager and never aborts the remaining steps. Disconnection by itself does
// not end a match.
func (s *Server) HandleDisconnect(connID string) {
	conn, ok := s.Conns.Get(connID)
	if !ok {
		s.Conns.Detach(connID)
		return
	}
	playerID := conn.Player.PlayerID
	s.Log.Infof("cascade: cleaning up after player %s (connection %s)", playerID, connID)

	// 1. Queue entries: the player's own entry and any team entry that
	// carries them, across every mode and tier.
	s.Queues.CancelAllFor(playerID)

	// 2. Team membership. A departing leader disbands the team; otherwise
	// the member is removed and the team disbands anyway if at most one
	// player would remain.
	if t, ok := s.Teams.TeamOf(playerID); ok {
		s.Queues.CancelAllFor(t.ID.String())
		if t.Leader().PlayerID == playerID {
			s.Teams.Disband(t.ID, "leader disconnected")
		} else {
			s.Teams.RemovePlayer(playerID)
		}
	}

	// 3. Room membership: removal cancels pending swaps naming the player
	// and deletes the room when the creator is the one leaving.
	if roomID, wasCreator, found := s.Rooms.RemovePlayer(playerID); found {
		if wasCreator {
			s.Log.Infof("cascade: room %s deleted, creator %s disconnected", roomID, playerID)
		}
	}

	// 4. Match groups: tell remaining participants; the session itself only
	// ends through an explicit leaveGame or forfeit.
	s.Games.NotifyDisconnect(playerID)

	s.Conns.Detach(connID)
}
