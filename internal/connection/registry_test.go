// internal/connection/registry_test.go
package connection

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t1ww/code-battle/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newConn(id, playerID string) *Conn {
	return &Conn{
		ID:      id,
		Player:  models.PlayerInfo{PlayerID: playerID, Name: playerID},
		OutChan: make(chan interface{}, 4),
		Cancel:  func() {},
	}
}

func TestAttachAndIdentity(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Attach(newConn("c1", "alice"))
	require.Equal(t, 1, r.Count())

	p, ok := r.Identity("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", p.PlayerID)
	assert.Equal(t, "c1", p.ConnID, "attach should stamp the connection id onto the identity")
}

func TestAttachMalformedIsNoOp(t *testing.T) {
	r := NewRegistry(testLogger())

	r.Attach(nil)
	r.Attach(&Conn{ID: "", Player: models.PlayerInfo{PlayerID: "alice"}})
	r.Attach(&Conn{ID: "c1"}) // missing player id

	assert.Equal(t, 0, r.Count())
}

func TestDetach(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Attach(newConn("c1", "alice"))

	r.Detach("c1")
	assert.Equal(t, 0, r.Count())

	_, ok := r.Get("c1")
	assert.False(t, ok)

	// Unknown and empty ids must not panic.
	r.Detach("c1")
	r.Detach("")
}

func TestSendDeliversAndDropsWhenFull(t *testing.T) {
	r := NewRegistry(testLogger())
	c := newConn("c1", "alice")
	c.OutChan = make(chan interface{}, 1)
	r.Attach(c)

	r.Send("c1", "first")
	r.Send("c1", "second") // channel full, dropped
	r.Send("nope", "lost") // unknown connection, dropped

	require.Len(t, c.OutChan, 1)
	assert.Equal(t, "first", <-c.OutChan)
}

func TestFindByPlayer(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Attach(newConn("c1", "alice"))
	r.Attach(newConn("c2", "bob"))

	c, ok := r.FindByPlayer("bob")
	require.True(t, ok)
	assert.Equal(t, "c2", c.ID)

	_, ok = r.FindByPlayer("carol")
	assert.False(t, ok)
}
