package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionIndex_SubscribeUnsubscribe(t *testing.T) {
	si := NewSubscriptionIndex()

	si.Subscribe("alice", "r1")
	si.Subscribe("alice", "r1") // idempotent
	si.Subscribe("bob", "r1")
	si.Subscribe("alice", "r2")

	assert.ElementsMatch(t, []string{"alice", "bob"}, si.SubscribersOf("r1"))
	assert.ElementsMatch(t, []string{"r1", "r2"}, si.RoomsOf("alice"))
	assert.True(t, si.IsSubscribed("alice", "r1"))
	assert.False(t, si.IsSubscribed("bob", "r2"))

	si.Unsubscribe("alice", "r1")
	assert.ElementsMatch(t, []string{"bob"}, si.SubscribersOf("r1"))
	assert.ElementsMatch(t, []string{"r2"}, si.RoomsOf("alice"))
}

func TestSubscriptionIndex_UnsubscribeAbsent(t *testing.T) {
	si := NewSubscriptionIndex()

	// Removing an absent entry is a no-op, never an error.
	si.Unsubscribe("alice", "r1")
	assert.Empty(t, si.SubscribersOf("r1"))
	assert.Empty(t, si.RoomsOf("alice"))
}

func TestSubscriptionIndex_DropUser(t *testing.T) {
	si := NewSubscriptionIndex()

	si.Subscribe("alice", "r1")
	si.Subscribe("alice", "r2")
	si.Subscribe("bob", "r1")

	si.DropUser("alice")

	assert.Empty(t, si.RoomsOf("alice"))
	assert.ElementsMatch(t, []string{"bob"}, si.SubscribersOf("r1"))
	assert.Empty(t, si.SubscribersOf("r2"))
}

func TestSubscriptionIndex_SnapshotIsolation(t *testing.T) {
	si := NewSubscriptionIndex()
	si.Subscribe("alice", "r1")

	subs := si.SubscribersOf("r1")
	si.Unsubscribe("alice", "r1")

	// The returned snapshot is not a live view.
	assert.ElementsMatch(t, []string{"alice"}, subs)
	assert.Empty(t, si.SubscribersOf("r1"))
}
