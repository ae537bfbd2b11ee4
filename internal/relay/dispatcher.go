package relay

import (
	"github.com/rs/zerolog"

	"github.com/npezzotti/chat-relay/internal/stats"
)

// Dispatcher fans an event out to every live connection of a target set.
// Delivery is best-effort per connection: each connection has its own bounded
// queue, and a slow consumer is disconnected rather than allowed to stall the
// others.
type Dispatcher struct {
	registry *ConnectionRegistry
	subs     *SubscriptionIndex
	stats    stats.StatsProvider
	log      zerolog.Logger
}

func NewDispatcher(registry *ConnectionRegistry, subs *SubscriptionIndex, sp stats.StatsProvider, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		subs:     subs,
		stats:    sp,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Personalizer builds the event a specific recipient should see. Returning
// nil skips the recipient.
type Personalizer func(recipientId string) *ServerEvent

// BroadcastToRoom delivers ev to every current subscriber of the room except
// excludeUserId.
func (d *Dispatcher) BroadcastToRoom(roomId, excludeUserId string, ev *ServerEvent) {
	d.BroadcastToRoomFunc(roomId, excludeUserId, func(string) *ServerEvent { return ev })
}

// BroadcastToRoomFunc is BroadcastToRoom with a per-recipient event build.
func (d *Dispatcher) BroadcastToRoomFunc(roomId, excludeUserId string, build Personalizer) {
	d.deliver(d.subs.SubscribersOf(roomId), excludeUserId, build)
}

// BroadcastToUsers delivers ev to an explicit user set, used when membership
// comes from the store rather than the subscription index.
func (d *Dispatcher) BroadcastToUsers(userIds []string, excludeUserId string, ev *ServerEvent) {
	d.deliver(userIds, excludeUserId, func(string) *ServerEvent { return ev })
}

// BroadcastToUsersFunc is BroadcastToUsers with a per-recipient event build.
func (d *Dispatcher) BroadcastToUsersFunc(userIds []string, excludeUserId string, build Personalizer) {
	d.deliver(userIds, excludeUserId, build)
}

// SendToUser delivers ev to every live connection of a single user.
func (d *Dispatcher) SendToUser(userId string, ev *ServerEvent) {
	d.deliver([]string{userId}, "", func(string) *ServerEvent { return ev })
}

func (d *Dispatcher) deliver(userIds []string, excludeUserId string, build Personalizer) {
	for _, userId := range userIds {
		if userId == excludeUserId {
			continue
		}

		ev := build(userId)
		if ev == nil {
			continue
		}

		for _, c := range d.registry.ConnectionsFor(userId) {
			if !c.QueueEvent(ev) {
				d.stats.Incr(stats.DroppedSends)
				d.log.Warn().Str("user_id", userId).Str("conn_id", c.Id()).
					Msg("send queue full, disconnecting slow consumer")
				c.Close()
			}
		}
	}
}
