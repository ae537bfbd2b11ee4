package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientEventValidate(t *testing.T) {
	tt := []struct {
		name    string
		event   ClientEvent
		wantErr bool
	}{
		{
			name:  "authenticate with token",
			event: ClientEvent{Type: EventAuthenticate, Token: "tok"},
		},
		{
			name:  "authenticate with user id",
			event: ClientEvent{Type: EventAuthenticate, UserId: "alice"},
		},
		{
			name:    "authenticate without credentials",
			event:   ClientEvent{Type: EventAuthenticate},
			wantErr: true,
		},
		{
			name:  "send_message complete",
			event: ClientEvent{Type: EventSendMessage, RoomId: "r1", Content: "hi"},
		},
		{
			name:    "send_message without content",
			event:   ClientEvent{Type: EventSendMessage, RoomId: "r1"},
			wantErr: true,
		},
		{
			name:    "send_message without room",
			event:   ClientEvent{Type: EventSendMessage, Content: "hi"},
			wantErr: true,
		},
		{
			name:  "typing_start with room",
			event: ClientEvent{Type: EventTypingStart, RoomId: "r1"},
		},
		{
			name:    "typing_stop without room",
			event:   ClientEvent{Type: EventTypingStop},
			wantErr: true,
		},
		{
			name:    "join_room without room",
			event:   ClientEvent{Type: EventJoinRoom},
			wantErr: true,
		},
		{
			name:  "message_read complete",
			event: ClientEvent{Type: EventMessageRead, MessageId: "m1", RoomId: "r1"},
		},
		{
			name:    "message_read without message id",
			event:   ClientEvent{Type: EventMessageRead, RoomId: "r1"},
			wantErr: true,
		},
		{
			name:  "initiate_call complete",
			event: ClientEvent{Type: EventInitiateCall, CalleeId: "bob", CallType: "video"},
		},
		{
			name:    "initiate_call without call type",
			event:   ClientEvent{Type: EventInitiateCall, CalleeId: "bob"},
			wantErr: true,
		},
		{
			name:  "accept_call with call id",
			event: ClientEvent{Type: EventAcceptCall, CallId: "c1"},
		},
		{
			name:    "end_call without call id",
			event:   ClientEvent{Type: EventEndCall},
			wantErr: true,
		},
		{
			name:    "screen_share_start without call id",
			event:   ClientEvent{Type: EventScreenShareStart},
			wantErr: true,
		},
		{
			name:  "webrtc_offer complete",
			event: ClientEvent{Type: EventWebRTCOffer, CallId: "c1", Payload: json.RawMessage(`{}`)},
		},
		{
			name:    "webrtc_offer without payload",
			event:   ClientEvent{Type: EventWebRTCOffer, CallId: "c1"},
			wantErr: true,
		},
		{
			name:  "add_participant complete",
			event: ClientEvent{Type: EventAddParticipant, CallId: "c1", UserId: "carol"},
		},
		{
			name:    "remove_participant without user id",
			event:   ClientEvent{Type: EventRemoveParticipant, CallId: "c1"},
			wantErr: true,
		},
		{
			name:  "unknown type passes through",
			event: ClientEvent{Type: "frobnicate"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(ErrCalleeOffline)
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, ErrCalleeOffline.Error(), ev.Error)
	assert.False(t, ev.Timestamp.IsZero())
}
