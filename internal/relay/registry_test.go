package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npezzotti/chat-relay/internal/testutil"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("first connection for a user", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		c := newTestClient("c1")
		first, err := r.Register("c1", "alice", c)
		require.NoError(t, err)
		assert.True(t, first, "expected first connection to be reported")
		assert.True(t, r.IsOnline("alice"))
		assert.Len(t, r.ConnectionsFor("alice"), 1)
	})

	t.Run("second device is not first", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		_, err := r.Register("c1", "alice", newTestClient("c1"))
		require.NoError(t, err)

		first, err := r.Register("c2", "alice", newTestClient("c2"))
		require.NoError(t, err)
		assert.False(t, first, "expected second connection not to be first")
		assert.Len(t, r.ConnectionsFor("alice"), 2)
	})

	t.Run("duplicate connection id fails", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		_, err := r.Register("c1", "alice", newTestClient("c1"))
		require.NoError(t, err)

		_, err = r.Register("c1", "alice", newTestClient("c1"))
		assert.ErrorIs(t, err, ErrAlreadyBound)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	t.Run("last connection takes user offline", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		c := newTestClient("c1")
		c.setUser("alice")
		_, err := r.Register("c1", "alice", c)
		require.NoError(t, err)

		userId, offline := r.Unregister("c1")
		assert.Equal(t, "alice", userId)
		assert.True(t, offline)
		assert.False(t, r.IsOnline("alice"))
		assert.Empty(t, r.ConnectionsFor("alice"))
	})

	t.Run("remaining device keeps user online", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		c1 := newTestClient("c1")
		c1.setUser("alice")
		c2 := newTestClient("c2")
		c2.setUser("alice")

		_, err := r.Register("c1", "alice", c1)
		require.NoError(t, err)
		_, err = r.Register("c2", "alice", c2)
		require.NoError(t, err)

		userId, offline := r.Unregister("c1")
		assert.Equal(t, "alice", userId)
		assert.False(t, offline)
		assert.True(t, r.IsOnline("alice"))
	})

	t.Run("unknown connection id is a no-op", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		userId, offline := r.Unregister("nope")
		assert.Empty(t, userId)
		assert.False(t, offline)
	})

	t.Run("double unregister is harmless", func(t *testing.T) {
		r := NewConnectionRegistry(testutil.TestLogger(t))

		c := newTestClient("c1")
		c.setUser("alice")
		_, err := r.Register("c1", "alice", c)
		require.NoError(t, err)

		r.Unregister("c1")
		userId, offline := r.Unregister("c1")
		assert.Empty(t, userId)
		assert.False(t, offline)
	})
}

func TestRegistry_IsOnline(t *testing.T) {
	r := NewConnectionRegistry(testutil.TestLogger(t))
	assert.False(t, r.IsOnline("alice"), "expected offline user with no connections")

	_, err := r.Register("c1", "alice", newTestClient("c1"))
	require.NoError(t, err)
	assert.True(t, r.IsOnline("alice"))
	assert.False(t, r.IsOnline("bob"))
}
