package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/identity"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/store"
)

// Server wires the relay components together and owns the set of live
// connections for the life of the process.
type Server struct {
	log         zerolog.Logger
	cfg         *config.Config
	stats       stats.StatsProvider
	registry    *ConnectionRegistry
	subs        *SubscriptionIndex
	typing      *TypingTracker
	dispatcher  *Dispatcher
	calls       *CallCoordinator
	router      *Router
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewServer(logger zerolog.Logger, st store.Store, idp identity.Provider,
	sp stats.StatsProvider, cfg *config.Config) *Server {
	registry := NewConnectionRegistry(logger)
	subs := NewSubscriptionIndex()
	dispatcher := NewDispatcher(registry, subs, sp, logger)
	typing := NewTypingTracker(subs, dispatcher, cfg.TypingTimeout, logger)
	calls := NewCallCoordinator(registry, dispatcher, st, sp, cfg.RingTimeout, logger)
	router := NewRouter(registry, subs, typing, dispatcher, calls, st, idp, sp,
		cfg.DeliveredDelay, logger)

	for _, metric := range []string{
		stats.ActiveConnections,
		stats.TotalConnections,
		stats.ActiveCalls,
		stats.MessagesRelayed,
		stats.DroppedSends,
	} {
		sp.RegisterMetric(metric)
	}

	return &Server{
		log:        logger.With().Str("component", "relay").Logger(),
		cfg:        cfg,
		stats:      sp,
		registry:   registry,
		subs:       subs,
		typing:     typing,
		dispatcher: dispatcher,
		calls:      calls,
		router:     router,
		clients:    make(map[*Client]struct{}),
	}
}

// HandleConnection adopts an upgraded websocket connection and runs its read
// and write pumps until the transport closes.
func (s *Server) HandleConnection(conn *websocket.Conn) {
	c := NewClient(uuid.NewString(), conn, s.router, s.log, s.cfg.SendQueueSize)
	c.onClose = s.removeClient

	s.addClient(c)
	s.stats.Incr(stats.ActiveConnections)
	s.stats.Incr(stats.TotalConnections)

	s.log.Debug().Str("conn_id", c.Id()).Msg("connection accepted")

	go c.Write()
	go c.Read()
}

func (s *Server) addClient(c *Client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c *Client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	s.stats.Decr(stats.ActiveConnections)
}

// Shutdown closes every live connection. Per-connection teardown runs on the
// read pumps as the transports close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsLock.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsLock.Unlock()

	s.log.Info().Int("clients", len(clients)).Msg("shutting down relay")

	for _, c := range clients {
		c.Close()
	}

	return nil
}
