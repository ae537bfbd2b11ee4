// Package store is the relay's interface to durable chat data. The relay
// never owns conversations, messages or call history; it reads membership and
// appends events through this collaborator.
package store

import (
	"context"
	"errors"

	"github.com/npezzotti/chat-relay/internal/types"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// PendingPrefix marks a synthetic room id for a one-to-one chat that has no
// conversation row yet: "pending:<peerUserId>". ResolveConversation turns it
// into a real conversation on first use.
const PendingPrefix = "pending:"

type SaveMessageParams struct {
	ConversationId string
	SenderId       string
	Content        string
}

type Store interface {
	Ping() error
	// ResolveConversation maps a wire room id to a conversation, creating a
	// one-to-one conversation when the id carries the pending prefix.
	ResolveConversation(ctx context.Context, roomId, senderId string) (types.Conversation, error)
	SaveMessage(ctx context.Context, params SaveMessageParams) (types.Message, error)
	MembersOf(ctx context.Context, conversationId string) ([]string, error)
	// SubscriptionsFor returns the conversation ids a user belongs to. Loaded
	// once at authentication time to seed the in-memory subscription index.
	SubscriptionsFor(ctx context.Context, userId string) ([]string, error)
	MarkMessageRead(ctx context.Context, messageId, userId string) error
	SaveCallRecord(ctx context.Context, call types.Call) error
}
