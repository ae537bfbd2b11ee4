package relay

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/npezzotti/chat-relay/internal/identity"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/store"
	"github.com/npezzotti/chat-relay/internal/testutil"
)

const (
	testTypingTimeout  = 50 * time.Millisecond
	testRingTimeout    = 150 * time.Millisecond
	testDeliveredDelay = 20 * time.Millisecond
)

type testRelay struct {
	registry   *ConnectionRegistry
	subs       *SubscriptionIndex
	typing     *TypingTracker
	dispatcher *Dispatcher
	calls      *CallCoordinator
	router     *Router
	store      *store.MockStore
	idp        *identity.MockProvider
}

func newTestRelay(t *testing.T) *testRelay {
	logger := testutil.TestLogger(t)
	st := &store.MockStore{}
	idp := &identity.MockProvider{}
	sp := &stats.MockStatsUpdater{}

	registry := NewConnectionRegistry(logger)
	subs := NewSubscriptionIndex()
	dispatcher := NewDispatcher(registry, subs, sp, logger)
	typing := NewTypingTracker(subs, dispatcher, testTypingTimeout, logger)
	calls := NewCallCoordinator(registry, dispatcher, st, sp, testRingTimeout, logger)
	router := NewRouter(registry, subs, typing, dispatcher, calls, st, idp, sp,
		testDeliveredDelay, logger)

	return &testRelay{
		registry:   registry,
		subs:       subs,
		typing:     typing,
		dispatcher: dispatcher,
		calls:      calls,
		router:     router,
		store:      st,
		idp:        idp,
	}
}

func newTestClient(id string) *Client {
	return &Client{
		id:   id,
		log:  zerolog.Nop(),
		send: make(chan *ServerEvent, 16),
		stop: make(chan struct{}),
	}
}

// connect registers an already-authenticated client, bypassing the wire
// authenticate flow.
func (tr *testRelay) connect(t *testing.T, connId, userId string) *Client {
	t.Helper()

	c := newTestClient(connId)
	_, err := tr.registry.Register(connId, userId, c)
	require.NoError(t, err)
	c.setUser(userId)

	return c
}

func recvEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()

	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}
