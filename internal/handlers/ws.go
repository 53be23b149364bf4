// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/t1ww/code-battle/internal/connection"
	"github.com/t1ww/code-battle/internal/protocol"
)

const subprotocol = "codebattle"

// WSHandler upgrades the connection and runs the read loop. The first event
// a client must send is "attach", binding its identity to the connection;
// everything else is rejected until then. When the read loop exits for any
// reason, the disconnect cascade runs.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			s.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != subprotocol {
			c.Close(websocket.StatusPolicyViolation, "client must speak the codebattle subprotocol")
			return
		}

		connID := uuid.NewString()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan interface{}, 32)
		go s.writePump(ctx, c, out)

		s.Log.Infof("connection %s established from %s", connID, r.RemoteAddr)
		s.readLoop(ctx, c, connID, out, cancel)

		// Cascade cleanup, but only if the client ever attached.
		if _, attached := s.Conns.Get(connID); attached {
			s.HandleDisconnect(connID)
		}
		s.Log.Infof("connection %s closed", connID)
	}
}

// readLoop processes inbound envelopes in arrival order; each message runs
// to completion before the next is read, so one connection's events are
// strictly ordered.
func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, connID string, out chan interface{}, cancel context.CancelFunc) {
	attached := false
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.Log.Infof("connection %s: websocket closed normally", connID)
			} else if strings.Contains(err.Error(), "context canceled") {
				s.Log.Infof("connection %s: context canceled", connID)
			} else {
				s.Log.Warnf("connection %s: read error: %v", connID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.push(out, protocol.NewError("", protocol.CodeValidation, "invalid JSON envelope"))
			continue
		}

		if !attached {
			if env.Event != protocol.EventAttach {
				s.push(out, protocol.NewError(env.Event, protocol.CodeValidation, "attach first"))
				continue
			}
			var req protocol.AttachRequest
			if err := json.Unmarshal(env.Data, &req); err != nil || req.Player.PlayerID == "" {
				s.push(out, protocol.NewError(env.Event, protocol.CodeValidation, "attach requires a player identity"))
				continue
			}
			req.Player.ConnID = connID
			s.Conns.Attach(&connection.Conn{
				ID:      connID,
				Player:  req.Player,
				OutChan: out,
				Cancel:  cancel,
			})
			attached = true
			s.push(out, protocol.Ack(protocol.EventAttach))
			continue
		}

		player, ok := s.Conns.Identity(connID)
		if !ok {
			// Detached mid-flight (e.g. competing cascade); stop processing.
			return
		}
		s.dispatch(connID, player, env)
	}
}

// writePump drains the out channel onto the wire. Each write has its own
// deadline so a stalled client cannot pin the goroutine.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, out chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.Log.Errorf("failed to marshal outbound message: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Log.Warnf("websocket write failed: %v", err)
				return
			}
		}
	}
}

// push is a non-blocking send onto a connection's out channel.
func (s *Server) push(out chan interface{}, msg interface{}) {
	select {
	case out <- msg:
	default:
		s.Log.Warn("out channel full, message dropped")
	}
}
