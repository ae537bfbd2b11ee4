package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/chat-relay/internal/types"
)

type EventType string

// Inbound event types.
const (
	EventAuthenticate      EventType = "authenticate"
	EventSendMessage       EventType = "send_message"
	EventTypingStart       EventType = "typing_start"
	EventTypingStop        EventType = "typing_stop"
	EventMessageRead       EventType = "message_read"
	EventJoinRoom          EventType = "join_room"
	EventLeaveRoom         EventType = "leave_room"
	EventSubscribe         EventType = "subscribe"
	EventInitiateCall      EventType = "initiate_call"
	EventAcceptCall        EventType = "accept_call"
	EventRejectCall        EventType = "reject_call"
	EventEndCall           EventType = "end_call"
	EventWebRTCOffer       EventType = "webrtc_offer"
	EventWebRTCAnswer      EventType = "webrtc_answer"
	EventWebRTCCandidate   EventType = "webrtc_ice_candidate"
	EventScreenShareStart  EventType = "screen_share_start"
	EventScreenShareStop   EventType = "screen_share_stop"
	EventRecordingStart    EventType = "recording_start"
	EventRecordingStop     EventType = "recording_stop"
	EventAddParticipant    EventType = "add_participant"
	EventRemoveParticipant EventType = "remove_participant"
)

// Outbound event types.
const (
	EventAuthenticated     EventType = "authenticated"
	EventNewMessage        EventType = "new_message"
	EventMessageStatus     EventType = "message_status"
	EventUserOnline        EventType = "user_online"
	EventUserOffline       EventType = "user_offline"
	EventIncomingCall      EventType = "incoming_call"
	EventCallAccepted      EventType = "call_accepted"
	EventCallRejected      EventType = "call_rejected"
	EventCallEnded         EventType = "call_ended"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventError             EventType = "error"
)

// ClientEvent is the inbound wire envelope. Required fields vary per type;
// Validate enforces the per-type contract once, at the protocol boundary.
type ClientEvent struct {
	Type      EventType       `json:"type"`
	Token     string          `json:"token,omitempty"`
	UserId    string          `json:"userId,omitempty"`
	RoomId    string          `json:"roomId,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsGroup   bool            `json:"isGroup,omitempty"`
	MessageId string          `json:"messageId,omitempty"`
	CalleeId  string          `json:"calleeId,omitempty"`
	CallType  string          `json:"callType,omitempty"`
	CallId    string          `json:"callId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (e *ClientEvent) Validate() error {
	switch e.Type {
	case EventAuthenticate:
		if e.Token == "" && e.UserId == "" {
			return fmt.Errorf("%w: authenticate requires a token or user id", ErrMalformedMessage)
		}
	case EventSendMessage:
		if e.RoomId == "" || e.Content == "" {
			return fmt.Errorf("%w: send_message requires roomId and content", ErrMalformedMessage)
		}
	case EventTypingStart, EventTypingStop, EventJoinRoom, EventLeaveRoom, EventSubscribe:
		if e.RoomId == "" {
			return fmt.Errorf("%w: %s requires roomId", ErrMalformedMessage, e.Type)
		}
	case EventMessageRead:
		if e.MessageId == "" || e.RoomId == "" {
			return fmt.Errorf("%w: message_read requires messageId and roomId", ErrMalformedMessage)
		}
	case EventInitiateCall:
		if e.CalleeId == "" || e.CallType == "" {
			return fmt.Errorf("%w: initiate_call requires calleeId and callType", ErrMalformedMessage)
		}
	case EventAcceptCall, EventRejectCall, EventEndCall,
		EventScreenShareStart, EventScreenShareStop, EventRecordingStart, EventRecordingStop:
		if e.CallId == "" {
			return fmt.Errorf("%w: %s requires callId", ErrMalformedMessage, e.Type)
		}
	case EventAddParticipant, EventRemoveParticipant:
		if e.CallId == "" || e.UserId == "" {
			return fmt.Errorf("%w: %s requires callId and userId", ErrMalformedMessage, e.Type)
		}
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCCandidate:
		if e.CallId == "" || len(e.Payload) == 0 {
			return fmt.Errorf("%w: %s requires callId and payload", ErrMalformedMessage, e.Type)
		}
	}

	return nil
}

// ServerEvent is the outbound wire envelope.
type ServerEvent struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	UserId    string          `json:"userId,omitempty"`
	RoomId    string          `json:"roomId,omitempty"`
	Message   *types.Message  `json:"message,omitempty"`
	MessageId string          `json:"messageId,omitempty"`
	Status    string          `json:"status,omitempty"`
	Call      *types.Call     `json:"call,omitempty"`
	CallId    string          `json:"callId,omitempty"`
	FromId    string          `json:"fromId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	// DurationSeconds accompanies call_ended.
	DurationSeconds int      `json:"durationSeconds,omitempty"`
	Participants    []string `json:"participants,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func ErrorEvent(err error) *ServerEvent {
	return &ServerEvent{
		Type:      EventError,
		Timestamp: Now(),
		Error:     err.Error(),
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
