package types

import (
	"time"
)

type User struct {
	Id        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Conversation struct {
	Id        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Delivery status progression for a persisted message.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

type Message struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Status         string    `json:"status,omitempty"`
	IsOwn          bool      `json:"is_own"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	CallKindAudio  = "audio"
	CallKindVideo  = "video"
	CallKindScreen = "screen"
)

const (
	CallStatusInitiated = "initiated"
	CallStatusRinging   = "ringing"
	CallStatusConnected = "connected"
	CallStatusEnded     = "ended"
	CallStatusRejected  = "rejected"
	CallStatusMissed    = "missed"
)

type Call struct {
	Id        string     `json:"id"`
	CallerId  string     `json:"caller_id"`
	CalleeId  string     `json:"callee_id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	// DurationSeconds is zero for calls that never connected.
	DurationSeconds int      `json:"duration_seconds"`
	Participants    []string `json:"participants,omitempty"`
}
