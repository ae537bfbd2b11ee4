package relay

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/store"
	"github.com/npezzotti/chat-relay/internal/types"
)

const callRecordTimeout = 5 * time.Second

// call is the in-memory state machine for one active call. Transitions are
// serialized by the coordinator's lock; terminal calls are removed from memory
// and handed to the store.
type call struct {
	id           string
	callerId     string
	calleeId     string
	kind         string
	status       string
	createdAt    time.Time
	startedAt    time.Time
	endedAt      time.Time
	participants map[string]struct{}
	ringTimer    *time.Timer
}

func (c *call) hasParticipant(userId string) bool {
	_, ok := c.participants[userId]
	return ok
}

func (c *call) participantIds() []string {
	ids := make([]string, 0, len(c.participants))
	for id := range c.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *call) duration() int {
	if c.startedAt.IsZero() || c.endedAt.IsZero() {
		return 0
	}
	return max(0, int(c.endedAt.Sub(c.startedAt).Seconds()))
}

func (c *call) snapshot() types.Call {
	snap := types.Call{
		Id:              c.id,
		CallerId:        c.callerId,
		CalleeId:        c.calleeId,
		Kind:            c.kind,
		Status:          c.status,
		CreatedAt:       c.createdAt,
		DurationSeconds: c.duration(),
		Participants:    c.participantIds(),
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		snap.StartedAt = &t
	}
	if !c.endedAt.IsZero() {
		t := c.endedAt
		snap.EndedAt = &t
	}
	return snap
}

// CallCoordinator owns every active call and relays signaling between exactly
// the call's participants. Calls are peer-to-peer; room subscriptions play no
// part in targeting.
type CallCoordinator struct {
	mu          sync.Mutex
	calls       map[string]*call
	registry    *ConnectionRegistry
	dispatcher  *Dispatcher
	store       store.Store
	stats       stats.StatsProvider
	ringTimeout time.Duration
	log         zerolog.Logger
}

func NewCallCoordinator(registry *ConnectionRegistry, dispatcher *Dispatcher, st store.Store,
	sp stats.StatsProvider, ringTimeout time.Duration, log zerolog.Logger) *CallCoordinator {
	return &CallCoordinator{
		calls:       make(map[string]*call),
		registry:    registry,
		dispatcher:  dispatcher,
		store:       st,
		stats:       sp,
		ringTimeout: ringTimeout,
		log:         log.With().Str("component", "calls").Logger(),
	}
}

// InitiateCall creates a call and rings the callee. Fails with ErrCalleeOffline
// before any state is created if the callee has no live connection.
func (cc *CallCoordinator) InitiateCall(callerId, calleeId, kind string) (types.Call, error) {
	if !cc.registry.IsOnline(calleeId) {
		return types.Call{}, ErrCalleeOffline
	}

	c := &call{
		id:        uuid.NewString(),
		callerId:  callerId,
		calleeId:  calleeId,
		kind:      kind,
		status:    types.CallStatusInitiated,
		createdAt: Now(),
		participants: map[string]struct{}{
			callerId: {},
			calleeId: {},
		},
	}

	cc.mu.Lock()
	c.status = types.CallStatusRinging
	if cc.ringTimeout > 0 {
		callId := c.id
		c.ringTimer = time.AfterFunc(cc.ringTimeout, func() {
			cc.expireRinging(callId)
		})
	}
	cc.calls[c.id] = c
	snap := c.snapshot()
	cc.mu.Unlock()

	cc.stats.Incr(stats.ActiveCalls)
	cc.log.Info().Str("call_id", c.id).Str("caller_id", callerId).
		Str("callee_id", calleeId).Str("kind", kind).Msg("call initiated")

	cc.dispatcher.SendToUser(calleeId, &ServerEvent{
		Type:      EventIncomingCall,
		Timestamp: Now(),
		Call:      &snap,
		CallId:    c.id,
		FromId:    callerId,
	})

	return snap, nil
}

// AcceptCall transitions a ringing call to connected and notifies every
// participant, the caller included.
func (cc *CallCoordinator) AcceptCall(callId, userId string) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(userId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusRinging {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}

	c.status = types.CallStatusConnected
	c.startedAt = Now()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
	}
	snap := c.snapshot()
	participants := c.participantIds()
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Str("user_id", userId).Msg("call accepted")

	cc.dispatcher.BroadcastToUsers(participants, "", &ServerEvent{
		Type:      EventCallAccepted,
		Timestamp: Now(),
		Call:      &snap,
		CallId:    callId,
		FromId:    userId,
	})

	return nil
}

// RejectCall moves a ringing call to the rejected terminal state and discards
// it. Only the other participants are notified.
func (cc *CallCoordinator) RejectCall(callId, userId string) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(userId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusRinging {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}

	snap, others := cc.finalizeLocked(c, types.CallStatusRejected, userId)
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Str("user_id", userId).Msg("call rejected")

	cc.dispatcher.BroadcastToUsers(others, "", &ServerEvent{
		Type:      EventCallRejected,
		Timestamp: Now(),
		CallId:    callId,
		FromId:    userId,
	})

	cc.persistRecord(snap)
	return nil
}

// EndCall terminates a ringing or connected call, stamps the duration and
// notifies all participants.
func (cc *CallCoordinator) EndCall(callId, userId string) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(userId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusRinging && c.status != types.CallStatusConnected {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}

	participants := c.participantIds()
	snap, _ := cc.finalizeLocked(c, types.CallStatusEnded, userId)
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Str("user_id", userId).
		Int("duration_seconds", snap.DurationSeconds).Msg("call ended")

	cc.dispatcher.BroadcastToUsers(participants, "", &ServerEvent{
		Type:            EventCallEnded,
		Timestamp:       Now(),
		CallId:          callId,
		FromId:          userId,
		Status:          snap.Status,
		DurationSeconds: snap.DurationSeconds,
	})

	cc.persistRecord(snap)
	return nil
}

// finalizeLocked stamps the terminal state and removes the call from the
// active set. Returns the terminal snapshot and the other participants.
func (cc *CallCoordinator) finalizeLocked(c *call, status, byUserId string) (types.Call, []string) {
	c.status = status
	c.endedAt = Now()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
	}
	delete(cc.calls, c.id)

	var others []string
	for id := range c.participants {
		if id != byUserId {
			others = append(others, id)
		}
	}
	slices.Sort(others)

	cc.stats.Decr(stats.ActiveCalls)
	return c.snapshot(), others
}

// expireRinging fires when a ringing call was never answered. The call ends
// as missed through the normal teardown so accounting stays uniform.
func (cc *CallCoordinator) expireRinging(callId string) {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok || c.status != types.CallStatusRinging {
		cc.mu.Unlock()
		return
	}

	participants := c.participantIds()
	snap, _ := cc.finalizeLocked(c, types.CallStatusMissed, "")
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Msg("ringing call expired")

	cc.dispatcher.BroadcastToUsers(participants, "", &ServerEvent{
		Type:      EventCallEnded,
		Timestamp: Now(),
		CallId:    callId,
		Status:    snap.Status,
	})

	cc.persistRecord(snap)
}

// RelaySignal forwards an opaque SDP or ICE payload to every other
// participant of a ringing or connected call.
func (cc *CallCoordinator) RelaySignal(callId, fromId string, evType EventType, payload json.RawMessage) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(fromId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusRinging && c.status != types.CallStatusConnected {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}
	participants := c.participantIds()
	cc.mu.Unlock()

	ev := &ServerEvent{
		Type:      evType,
		Timestamp: Now(),
		CallId:    callId,
		FromId:    fromId,
		Payload:   payload,
	}
	cc.dispatcher.BroadcastToUsers(participants, fromId, ev)

	return nil
}

// Notify forwards a fire-and-forget control signal (screen share, recording)
// to the other participants. No status precondition beyond participation.
func (cc *CallCoordinator) Notify(callId, fromId string, evType EventType) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(fromId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	participants := c.participantIds()
	cc.mu.Unlock()

	cc.dispatcher.BroadcastToUsers(participants, fromId, &ServerEvent{
		Type:      evType,
		Timestamp: Now(),
		CallId:    callId,
		FromId:    fromId,
	})

	return nil
}

// AddParticipant grows a connected call's participant set. The new party must
// be online; everyone gets the updated roster and the new party an
// incoming_call.
func (cc *CallCoordinator) AddParticipant(callId, byUserId, newUserId string) error {
	if !cc.registry.IsOnline(newUserId) {
		return ErrCalleeOffline
	}

	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(byUserId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusConnected {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}

	c.participants[newUserId] = struct{}{}
	snap := c.snapshot()
	participants := c.participantIds()
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Str("user_id", newUserId).Msg("participant added")

	cc.dispatcher.SendToUser(newUserId, &ServerEvent{
		Type:      EventIncomingCall,
		Timestamp: Now(),
		Call:      &snap,
		CallId:    callId,
		FromId:    byUserId,
	})
	cc.dispatcher.BroadcastToUsers(participants, "", &ServerEvent{
		Type:         EventParticipantJoined,
		Timestamp:    Now(),
		CallId:       callId,
		UserId:       newUserId,
		Participants: snap.Participants,
	})

	return nil
}

// RemoveParticipant shrinks a connected call's participant set; removing the
// last participant ends the call.
func (cc *CallCoordinator) RemoveParticipant(callId, byUserId, userId string) error {
	cc.mu.Lock()
	c, ok := cc.calls[callId]
	if !ok {
		cc.mu.Unlock()
		return ErrCallNotFound
	}
	if !c.hasParticipant(byUserId) || !c.hasParticipant(userId) {
		cc.mu.Unlock()
		return ErrNotAParticipant
	}
	if c.status != types.CallStatusConnected {
		cc.mu.Unlock()
		return ErrCallAlreadyTerminated
	}

	delete(c.participants, userId)

	if len(c.participants) == 0 {
		snap, _ := cc.finalizeLocked(c, types.CallStatusEnded, userId)
		cc.mu.Unlock()

		cc.log.Info().Str("call_id", callId).Msg("last participant left, call ended")
		cc.persistRecord(snap)
		return nil
	}

	snap := c.snapshot()
	participants := c.participantIds()
	cc.mu.Unlock()

	cc.log.Info().Str("call_id", callId).Str("user_id", userId).Msg("participant removed")

	notify := append(participants, userId)
	cc.dispatcher.BroadcastToUsers(notify, "", &ServerEvent{
		Type:         EventParticipantLeft,
		Timestamp:    Now(),
		CallId:       callId,
		UserId:       userId,
		Participants: snap.Participants,
	})

	return nil
}

// EndAllForUser ends every call the user participates in, through the normal
// end path. Invoked when the user's last connection closes.
func (cc *CallCoordinator) EndAllForUser(userId string) {
	cc.mu.Lock()
	var callIds []string
	for id, c := range cc.calls {
		if c.hasParticipant(userId) {
			callIds = append(callIds, id)
		}
	}
	cc.mu.Unlock()

	for _, id := range callIds {
		if err := cc.EndCall(id, userId); err != nil {
			cc.log.Warn().Err(err).Str("call_id", id).Str("user_id", userId).
				Msg("end call on disconnect")
		}
	}
}

// ActiveCallCount reports the number of calls currently held in memory.
func (cc *CallCoordinator) ActiveCallCount() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.calls)
}

func (cc *CallCoordinator) persistRecord(snap types.Call) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callRecordTimeout)
		defer cancel()

		if err := cc.store.SaveCallRecord(ctx, snap); err != nil {
			cc.log.Error().Err(err).Str("call_id", snap.Id).Msg("save call record")
		}
	}()
}
