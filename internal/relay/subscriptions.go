package relay

import (
	"sync"
)

// SubscriptionIndex records which rooms each user is currently interested in.
// Interest, not membership: the durable membership list lives in the store,
// this index only drives broadcast targeting.
type SubscriptionIndex struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]struct{}
	byUser map[string]map[string]struct{}
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		byRoom: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (si *SubscriptionIndex) Subscribe(userId, roomId string) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.byRoom[roomId] == nil {
		si.byRoom[roomId] = make(map[string]struct{})
	}
	si.byRoom[roomId][userId] = struct{}{}

	if si.byUser[userId] == nil {
		si.byUser[userId] = make(map[string]struct{})
	}
	si.byUser[userId][roomId] = struct{}{}
}

func (si *SubscriptionIndex) Unsubscribe(userId, roomId string) {
	si.mu.Lock()
	defer si.mu.Unlock()

	si.removeLocked(userId, roomId)
}

func (si *SubscriptionIndex) removeLocked(userId, roomId string) {
	if users, ok := si.byRoom[roomId]; ok {
		delete(users, userId)
		if len(users) == 0 {
			delete(si.byRoom, roomId)
		}
	}

	if rooms, ok := si.byUser[userId]; ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(si.byUser, userId)
		}
	}
}

func (si *SubscriptionIndex) IsSubscribed(userId, roomId string) bool {
	si.mu.RLock()
	defer si.mu.RUnlock()

	_, ok := si.byUser[userId][roomId]
	return ok
}

// SubscribersOf returns a snapshot of the room's subscriber set.
func (si *SubscriptionIndex) SubscribersOf(roomId string) []string {
	si.mu.RLock()
	defer si.mu.RUnlock()

	users := make([]string, 0, len(si.byRoom[roomId]))
	for userId := range si.byRoom[roomId] {
		users = append(users, userId)
	}

	return users
}

// RoomsOf returns a snapshot of the rooms a user is subscribed to.
func (si *SubscriptionIndex) RoomsOf(userId string) []string {
	si.mu.RLock()
	defer si.mu.RUnlock()

	rooms := make([]string, 0, len(si.byUser[userId]))
	for roomId := range si.byUser[userId] {
		rooms = append(rooms, roomId)
	}

	return rooms
}

// DropUser removes the user from every room's subscriber set.
func (si *SubscriptionIndex) DropUser(userId string) {
	si.mu.Lock()
	defer si.mu.Unlock()

	for roomId := range si.byUser[userId] {
		si.removeLocked(userId, roomId)
	}
}
