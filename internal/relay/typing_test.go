package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingTracker_StartBroadcasts(t *testing.T) {
	tr := newTestRelay(t)

	alice := tr.connect(t, "c1", "alice")
	bob := tr.connect(t, "c2", "bob")
	tr.subs.Subscribe("alice", "r1")
	tr.subs.Subscribe("bob", "r1")

	tr.typing.Start("r1", "alice")

	ev := recvEvent(t, bob)
	assert.Equal(t, EventTypingStart, ev.Type)
	assert.Equal(t, "r1", ev.RoomId)
	assert.Equal(t, "alice", ev.UserId)

	// The typist does not receive their own indicator.
	requireNoEvent(t, alice)
	assert.True(t, tr.typing.IsTyping("r1", "alice"))
}

func TestTypingTracker_NonSubscriberIgnored(t *testing.T) {
	tr := newTestRelay(t)

	tr.connect(t, "c1", "alice")
	bob := tr.connect(t, "c2", "bob")
	tr.subs.Subscribe("bob", "r1")

	// alice is not subscribed to r1, so she cannot be marked typing there.
	tr.typing.Start("r1", "alice")

	assert.False(t, tr.typing.IsTyping("r1", "alice"))
	requireNoEvent(t, bob)
}

func TestTypingTracker_StopIdempotent(t *testing.T) {
	tr := newTestRelay(t)

	bob := tr.connect(t, "c2", "bob")
	tr.subs.Subscribe("bob", "r1")

	tr.typing.Stop("r1", "alice")
	requireNoEvent(t, bob)
}

func TestTypingTracker_RefreshDoesNotReBroadcast(t *testing.T) {
	tr := newTestRelay(t)

	tr.connect(t, "c1", "alice")
	bob := tr.connect(t, "c2", "bob")
	tr.subs.Subscribe("alice", "r1")
	tr.subs.Subscribe("bob", "r1")

	tr.typing.Start("r1", "alice")
	tr.typing.Start("r1", "alice")

	ev := recvEvent(t, bob)
	assert.Equal(t, EventTypingStart, ev.Type)
	requireNoEvent(t, bob)
}

func TestTypingTracker_AutoExpiry(t *testing.T) {
	tr := newTestRelay(t)

	tr.connect(t, "c1", "alice")
	bob := tr.connect(t, "c2", "bob")
	tr.subs.Subscribe("alice", "r1")
	tr.subs.Subscribe("bob", "r1")

	tr.typing.Start("r1", "alice")

	ev := recvEvent(t, bob)
	assert.Equal(t, EventTypingStart, ev.Type)

	// With no typing_stop from alice, the window elapses and subscribers
	// receive an automatic stop.
	ev = recvEvent(t, bob)
	assert.Equal(t, EventTypingStop, ev.Type)
	assert.Equal(t, "alice", ev.UserId)
	assert.False(t, tr.typing.IsTyping("r1", "alice"))
}

func TestTypingTracker_DropUser(t *testing.T) {
	tr := newTestRelay(t)

	tr.connect(t, "c1", "alice")
	bob := tr.connect(t, "c2", "bob")
	carol := tr.connect(t, "c3", "carol")

	tr.subs.Subscribe("alice", "r1")
	tr.subs.Subscribe("bob", "r1")
	tr.subs.Subscribe("alice", "r2")
	tr.subs.Subscribe("carol", "r2")

	tr.typing.Start("r1", "alice")
	tr.typing.Start("r2", "alice")
	assert.Equal(t, EventTypingStart, recvEvent(t, bob).Type)
	assert.Equal(t, EventTypingStart, recvEvent(t, carol).Type)

	tr.typing.DropUser("alice")

	ev := recvEvent(t, bob)
	assert.Equal(t, EventTypingStop, ev.Type)
	assert.Equal(t, "r1", ev.RoomId)

	ev = recvEvent(t, carol)
	assert.Equal(t, EventTypingStop, ev.Type)
	assert.Equal(t, "r2", ev.RoomId)

	assert.False(t, tr.typing.IsTyping("r1", "alice"))
	assert.False(t, tr.typing.IsTyping("r2", "alice"))

	// Expiry timers were cancelled along with the entries.
	time.Sleep(2 * testTypingTimeout)
	requireNoEvent(t, bob)
	requireNoEvent(t, carol)
}
