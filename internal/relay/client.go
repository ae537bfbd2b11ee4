package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client is the owned handle to a single live websocket session. Ownership is
// exclusive to the relay for the duration of the session.
type Client struct {
	id     string
	conn   *websocket.Conn
	router *Router
	log    zerolog.Logger
	send   chan *ServerEvent
	stop   chan struct{}
	// onClose is invoked once, after protocol teardown, when the read pump
	// exits. Set by the relay server to reclaim its client table entry.
	onClose func(*Client)

	closeOnce sync.Once

	mu            sync.RWMutex
	userId        string
	authenticated bool
}

func NewClient(id string, conn *websocket.Conn, router *Router, log zerolog.Logger, sendQueueSize int) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		router: router,
		log:    log.With().Str("conn_id", id).Logger(),
		send:   make(chan *ServerEvent, sendQueueSize),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) UserId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userId
}

func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) setUser(userId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userId = userId
	c.authenticated = true
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize event")
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.router.Disconnect(c)
		if c.onClose != nil {
			c.onClose(c)
		}
		c.Close()
		c.log.Debug().Msg("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			break
		}

		c.router.HandleEvent(c, raw)
	}
}

// QueueEvent enqueues an event for delivery, never blocking. Returns false if
// the client's send queue is full.
func (c *Client) QueueEvent(ev *ServerEvent) bool {
	select {
	case <-c.stop:
		return true
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close signals both pumps to exit. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("ws write")
		}
		return false
	}

	return true
}
