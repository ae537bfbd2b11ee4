package relay

import "errors"

// Recoverable protocol errors. All of these are reported back to the
// originating connection as an error event and never tear down shared state.
var (
	ErrUnauthenticated       = errors.New("connection is not authenticated")
	ErrMalformedMessage      = errors.New("malformed message")
	ErrCalleeOffline         = errors.New("callee is offline")
	ErrNotAParticipant       = errors.New("not a participant of the call")
	ErrCallNotFound          = errors.New("call not found")
	ErrCallAlreadyTerminated = errors.New("call already terminated")
	// ErrAlreadyBound indicates a connection id registered twice without an
	// intervening unregister. Internal invariant violation.
	ErrAlreadyBound = errors.New("connection already bound")
)
