package relay

import (
	"sync"

	"github.com/rs/zerolog"
)

// ConnectionRegistry owns the mapping from authenticated user ids to their
// live connections. A user may hold several connections (devices); a
// connection id binds at most once.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	byConn  map[string]*Client
	byUser  map[string]map[string]*Client
	log     zerolog.Logger
}

func NewConnectionRegistry(log zerolog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Register binds a connection to a user. Returns whether this is the user's
// first live connection, or ErrAlreadyBound if the connection id is already
// registered.
func (r *ConnectionRegistry) Register(connId, userId string, c *Client) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connId]; ok {
		return false, ErrAlreadyBound
	}

	r.byConn[connId] = c
	first := len(r.byUser[userId]) == 0
	if r.byUser[userId] == nil {
		r.byUser[userId] = make(map[string]*Client)
	}
	r.byUser[userId][connId] = c

	r.log.Debug().Str("conn_id", connId).Str("user_id", userId).Msg("registered connection")
	return first, nil
}

// Unregister removes a binding. A no-op for unknown connection ids, so
// double-close events are harmless. Returns the bound user id and whether the
// user has no remaining connections.
func (r *ConnectionRegistry) Unregister(connId string) (userId string, offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connId]
	if !ok {
		return "", false
	}

	delete(r.byConn, connId)
	userId = c.UserId()

	if conns, ok := r.byUser[userId]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(r.byUser, userId)
			offline = true
		}
	}

	r.log.Debug().Str("conn_id", connId).Str("user_id", userId).Bool("offline", offline).
		Msg("unregistered connection")
	return userId, offline
}

// ConnectionsFor returns a snapshot of the user's live connections.
func (r *ConnectionRegistry) ConnectionsFor(userId string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Client, 0, len(r.byUser[userId]))
	for _, c := range r.byUser[userId] {
		conns = append(conns, c)
	}

	return conns
}

func (r *ConnectionRegistry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userId]) > 0
}
