package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/npezzotti/chat-relay/internal/identity"
	"github.com/npezzotti/chat-relay/internal/stats"
	"github.com/npezzotti/chat-relay/internal/store"
	"github.com/npezzotti/chat-relay/internal/types"
)

const storeTimeout = 10 * time.Second

// errInternal is what a collaborator failure looks like from the outside.
var errInternal = errors.New("internal server error")

// Router decodes inbound events, enforces the authentication gate, and
// drives the relay components. It never holds a component lock across a
// store call; each component serializes its own state.
type Router struct {
	registry   *ConnectionRegistry
	subs       *SubscriptionIndex
	typing     *TypingTracker
	dispatcher *Dispatcher
	calls      *CallCoordinator
	store      store.Store
	identity   identity.Provider
	stats      stats.StatsProvider
	// deliveredDelay models "delivered" as a local liveness fact: a fixed
	// delay after send, not a transport acknowledgment.
	deliveredDelay time.Duration
	log            zerolog.Logger
}

func NewRouter(registry *ConnectionRegistry, subs *SubscriptionIndex, typing *TypingTracker,
	dispatcher *Dispatcher, calls *CallCoordinator, st store.Store, idp identity.Provider,
	sp stats.StatsProvider, deliveredDelay time.Duration, log zerolog.Logger) *Router {
	return &Router{
		registry:       registry,
		subs:           subs,
		typing:         typing,
		dispatcher:     dispatcher,
		calls:          calls,
		store:          st,
		identity:       idp,
		stats:          sp,
		deliveredDelay: deliveredDelay,
		log:            log.With().Str("component", "router").Logger(),
	}
}

// HandleEvent processes one inbound wire message from a connection. Failures
// are reported back to the same connection only and never mutate shared
// state.
func (r *Router) HandleEvent(c *Client, raw []byte) {
	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		r.log.Debug().Err(err).Str("conn_id", c.Id()).Msg("failed to decode event")
		c.QueueEvent(ErrorEvent(ErrMalformedMessage))
		return
	}

	if err := ev.Validate(); err != nil {
		c.QueueEvent(ErrorEvent(err))
		return
	}

	if ev.Type != EventAuthenticate && !c.Authenticated() {
		c.QueueEvent(ErrorEvent(ErrUnauthenticated))
		return
	}

	switch ev.Type {
	case EventAuthenticate:
		r.handleAuthenticate(c, &ev)
	case EventSendMessage:
		r.handleSendMessage(c, &ev)
	case EventTypingStart:
		r.typing.Start(ev.RoomId, c.UserId())
	case EventTypingStop:
		r.typing.Stop(ev.RoomId, c.UserId())
	case EventMessageRead:
		r.handleMessageRead(c, &ev)
	case EventJoinRoom, EventSubscribe:
		r.subs.Subscribe(c.UserId(), ev.RoomId)
	case EventLeaveRoom:
		r.typing.Stop(ev.RoomId, c.UserId())
		r.subs.Unsubscribe(c.UserId(), ev.RoomId)
	case EventInitiateCall:
		if _, err := r.calls.InitiateCall(c.UserId(), ev.CalleeId, ev.CallType); err != nil {
			c.QueueEvent(ErrorEvent(err))
		}
	case EventAcceptCall:
		r.reportErr(c, r.calls.AcceptCall(ev.CallId, c.UserId()))
	case EventRejectCall:
		r.reportErr(c, r.calls.RejectCall(ev.CallId, c.UserId()))
	case EventEndCall:
		r.reportErr(c, r.calls.EndCall(ev.CallId, c.UserId()))
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCCandidate:
		r.reportErr(c, r.calls.RelaySignal(ev.CallId, c.UserId(), ev.Type, ev.Payload))
	case EventScreenShareStart, EventScreenShareStop, EventRecordingStart, EventRecordingStop:
		r.reportErr(c, r.calls.Notify(ev.CallId, c.UserId(), ev.Type))
	case EventAddParticipant:
		r.reportErr(c, r.calls.AddParticipant(ev.CallId, c.UserId(), ev.UserId))
	case EventRemoveParticipant:
		r.reportErr(c, r.calls.RemoveParticipant(ev.CallId, c.UserId(), ev.UserId))
	default:
		// Unrecognized types are acknowledged and otherwise ignored.
		r.log.Debug().Str("type", string(ev.Type)).Msg("unrecognized event type")
		c.QueueEvent(ErrorEvent(errors.New("unrecognized event type: " + string(ev.Type))))
	}
}

func (r *Router) reportErr(c *Client, err error) {
	if err == nil {
		return
	}
	c.QueueEvent(ErrorEvent(err))
}

func (r *Router) handleAuthenticate(c *Client, ev *ClientEvent) {
	userId := ev.UserId
	if ev.Token != "" {
		resolved, err := r.identity.Resolve(ev.Token)
		if err != nil {
			r.log.Warn().Err(err).Str("conn_id", c.Id()).Msg("token resolution failed")
			c.QueueEvent(ErrorEvent(ErrUnauthenticated))
			return
		}
		userId = resolved
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rooms, err := r.store.SubscriptionsFor(ctx, userId)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userId).Msg("load subscriptions")
		c.QueueEvent(ErrorEvent(errInternal))
		return
	}

	first, err := r.registry.Register(c.Id(), userId, c)
	if err != nil {
		r.log.Error().Err(err).Str("conn_id", c.Id()).Msg("register connection")
		c.QueueEvent(ErrorEvent(err))
		return
	}

	c.setUser(userId)
	for _, roomId := range rooms {
		r.subs.Subscribe(userId, roomId)
	}

	c.QueueEvent(&ServerEvent{
		Type:      EventAuthenticated,
		Timestamp: Now(),
		UserId:    userId,
	})

	r.log.Info().Str("conn_id", c.Id()).Str("user_id", userId).
		Int("rooms", len(rooms)).Msg("connection authenticated")

	if first {
		for _, roomId := range rooms {
			r.dispatcher.BroadcastToRoom(roomId, userId, &ServerEvent{
				Type:      EventUserOnline,
				Timestamp: Now(),
				RoomId:    roomId,
				UserId:    userId,
			})
		}
	}
}

func (r *Router) handleSendMessage(c *Client, ev *ClientEvent) {
	userId := c.UserId()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	conv, err := r.store.ResolveConversation(ctx, ev.RoomId, userId)
	if err != nil {
		r.log.Error().Err(err).Str("room_id", ev.RoomId).Msg("resolve conversation")
		c.QueueEvent(ErrorEvent(errInternal))
		return
	}

	// Persist before any broadcast: a message that failed to save is never
	// observed by recipients.
	msg, err := r.store.SaveMessage(ctx, store.SaveMessageParams{
		ConversationId: conv.Id,
		SenderId:       userId,
		Content:        ev.Content,
	})
	if err != nil {
		r.log.Error().Err(err).Str("conversation_id", conv.Id).Msg("save message")
		c.QueueEvent(ErrorEvent(errInternal))
		return
	}

	members, err := r.store.MembersOf(ctx, conv.Id)
	if err != nil {
		r.log.Error().Err(err).Str("conversation_id", conv.Id).Msg("load members")
		c.QueueEvent(ErrorEvent(errInternal))
		return
	}

	// A pending one-to-one chat materialized just now: seed the live
	// subscription index for the members that are online.
	if strings.HasPrefix(ev.RoomId, store.PendingPrefix) {
		for _, member := range members {
			if r.registry.IsOnline(member) {
				r.subs.Subscribe(member, conv.Id)
			}
		}
	}

	// Sending a message implicitly clears the sender's typing indicator.
	r.typing.Stop(conv.Id, userId)

	r.dispatcher.BroadcastToUsersFunc(members, "", func(recipientId string) *ServerEvent {
		view := msg
		view.Status = types.MessageStatusSent
		view.IsOwn = recipientId == userId
		return &ServerEvent{
			Type:      EventNewMessage,
			Timestamp: Now(),
			RoomId:    conv.Id,
			Message:   &view,
		}
	})

	r.stats.Incr(stats.MessagesRelayed)

	// Delivered is a fixed delay after send, not a transport acknowledgment.
	messageId := msg.Id
	roomId := conv.Id
	time.AfterFunc(r.deliveredDelay, func() {
		r.dispatcher.BroadcastToUsers(members, "", &ServerEvent{
			Type:      EventMessageStatus,
			Timestamp: Now(),
			RoomId:    roomId,
			MessageId: messageId,
			Status:    types.MessageStatusDelivered,
		})
	})
}

func (r *Router) handleMessageRead(c *Client, ev *ClientEvent) {
	userId := c.UserId()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.store.MarkMessageRead(ctx, ev.MessageId, userId); err != nil {
		r.log.Error().Err(err).Str("message_id", ev.MessageId).Msg("mark message read")
		c.QueueEvent(ErrorEvent(errInternal))
		return
	}

	r.dispatcher.BroadcastToRoom(ev.RoomId, "", &ServerEvent{
		Type:      EventMessageStatus,
		Timestamp: Now(),
		RoomId:    ev.RoomId,
		MessageId: ev.MessageId,
		UserId:    userId,
		Status:    types.MessageStatusRead,
	})
}

// Disconnect tears down everything a connection touched: its registry
// binding, and, if this was the user's last connection, typing state,
// subscriptions, presence and active calls. Partial cleanup is a bug, so the
// sequence always runs to completion.
func (r *Router) Disconnect(c *Client) {
	userId, offline := r.registry.Unregister(c.Id())
	if userId == "" {
		return
	}

	if !offline {
		return
	}

	r.typing.DropUser(userId)

	rooms := r.subs.RoomsOf(userId)
	r.subs.DropUser(userId)
	for _, roomId := range rooms {
		r.dispatcher.BroadcastToRoom(roomId, userId, &ServerEvent{
			Type:      EventUserOffline,
			Timestamp: Now(),
			RoomId:    roomId,
			UserId:    userId,
		})
	}

	r.calls.EndAllForUser(userId)

	r.log.Info().Str("conn_id", c.Id()).Str("user_id", userId).Msg("user offline, state dropped")
}
