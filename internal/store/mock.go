package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/types"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) ResolveConversation(ctx context.Context, roomId, senderId string) (types.Conversation, error) {
	args := m.Called(roomId, senderId)
	return args.Get(0).(types.Conversation), args.Error(1)
}

func (m *MockStore) SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error) {
	args := m.Called(params)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *MockStore) MembersOf(ctx context.Context, conversationId string) ([]string, error) {
	args := m.Called(conversationId)
	if members, ok := args.Get(0).([]string); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) SubscriptionsFor(ctx context.Context, userId string) ([]string, error) {
	args := m.Called(userId)
	if subs, ok := args.Get(0).([]string); ok {
		return subs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) MarkMessageRead(ctx context.Context, messageId, userId string) error {
	args := m.Called(messageId, userId)
	return args.Error(0)
}

func (m *MockStore) SaveCallRecord(ctx context.Context, call types.Call) error {
	args := m.Called(call)
	return args.Error(0)
}
