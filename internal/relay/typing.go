package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TypingTracker keeps per-room sets of currently-typing users. Entries expire
// after the inactivity window unless refreshed, and a typing_stop is broadcast
// so peers never see a stuck indicator.
type TypingTracker struct {
	mu         sync.Mutex
	rooms      map[string]map[string]*time.Timer
	subs       *SubscriptionIndex
	dispatcher *Dispatcher
	timeout    time.Duration
	log        zerolog.Logger
}

func NewTypingTracker(subs *SubscriptionIndex, dispatcher *Dispatcher, timeout time.Duration, log zerolog.Logger) *TypingTracker {
	return &TypingTracker{
		rooms:      make(map[string]map[string]*time.Timer),
		subs:       subs,
		dispatcher: dispatcher,
		timeout:    timeout,
		log:        log.With().Str("component", "typing").Logger(),
	}
}

// Start marks the user as typing in the room and schedules an automatic stop.
// A user cannot be marked typing in a room it is not subscribed to.
func (tt *TypingTracker) Start(roomId, userId string) {
	if !tt.subs.IsSubscribed(userId, roomId) {
		tt.log.Debug().Str("room_id", roomId).Str("user_id", userId).
			Msg("ignoring typing_start from non-subscriber")
		return
	}

	tt.mu.Lock()
	if tt.rooms[roomId] == nil {
		tt.rooms[roomId] = make(map[string]*time.Timer)
	}

	timer, refreshed := tt.rooms[roomId][userId]
	if refreshed {
		timer.Reset(tt.timeout)
	} else {
		tt.rooms[roomId][userId] = time.AfterFunc(tt.timeout, func() {
			tt.Stop(roomId, userId)
		})
	}
	tt.mu.Unlock()

	if !refreshed {
		tt.dispatcher.BroadcastToRoom(roomId, userId, &ServerEvent{
			Type:      EventTypingStart,
			Timestamp: Now(),
			RoomId:    roomId,
			UserId:    userId,
		})
	}
}

// Stop clears the typing mark and notifies the room. Idempotent.
func (tt *TypingTracker) Stop(roomId, userId string) {
	if !tt.remove(roomId, userId) {
		return
	}

	tt.dispatcher.BroadcastToRoom(roomId, userId, &ServerEvent{
		Type:      EventTypingStop,
		Timestamp: Now(),
		RoomId:    roomId,
		UserId:    userId,
	})
}

func (tt *TypingTracker) remove(roomId, userId string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	timer, ok := tt.rooms[roomId][userId]
	if !ok {
		return false
	}

	timer.Stop()
	delete(tt.rooms[roomId], userId)
	if len(tt.rooms[roomId]) == 0 {
		delete(tt.rooms, roomId)
	}

	return true
}

// DropUser clears the user's typing state in every room, emitting typing_stop
// for each.
func (tt *TypingTracker) DropUser(userId string) {
	tt.mu.Lock()
	var affected []string
	for roomId, users := range tt.rooms {
		if _, ok := users[userId]; ok {
			affected = append(affected, roomId)
		}
	}
	tt.mu.Unlock()

	for _, roomId := range affected {
		tt.Stop(roomId, userId)
	}
}

// IsTyping reports whether the user is currently marked typing in the room.
func (tt *TypingTracker) IsTyping(roomId, userId string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	_, ok := tt.rooms[roomId][userId]
	return ok
}
