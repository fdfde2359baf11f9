package call

import (
	"errors"
	"fmt"

	"github.com/TheRealNeelaksh/Shrudaya/pkg/call/transport"
)

// EndReason categorizes why a call ended. Every fatal condition funnels
// through a single endCall path carrying one of these, so teardown is uniform
// regardless of trigger.
type EndReason string

const (
	// ReasonHangup is a user-initiated end.
	ReasonHangup EndReason = "hangup"
	// ReasonDeviceUnavailable means microphone permission was denied or no
	// capture device exists. Never retried automatically.
	ReasonDeviceUnavailable EndReason = "device_unavailable"
	// ReasonConnectionFailed means the transport never reached the open state.
	ReasonConnectionFailed EndReason = "connection_failed"
	// ReasonConnectionClosed means an open transport was closed by the peer
	// or dropped with a generic error.
	ReasonConnectionClosed EndReason = "connection_closed"
	// ReasonAuthenticationRejected means the peer closed the connection with
	// the reserved auth-rejection close code. Surfaced distinctly so the
	// presentation layer can prompt for new credentials instead of showing a
	// generic "connection lost".
	ReasonAuthenticationRejected EndReason = "authentication_rejected"
)

// Error is a call-terminating failure with a user-facing message.
type Error struct {
	Reason  EndReason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewDeviceUnavailableError wraps a microphone acquisition failure.
func NewDeviceUnavailableError(err error) *Error {
	return &Error{Reason: ReasonDeviceUnavailable, Message: "could not access microphone", Err: err}
}

// NewConnectionFailedError wraps a failed connection attempt.
func NewConnectionFailedError(err error) *Error {
	return &Error{Reason: ReasonConnectionFailed, Message: "could not connect", Err: err}
}

// NewConnectionClosedError wraps a dropped or peer-closed connection.
func NewConnectionClosedError(err error) *Error {
	return &Error{Reason: ReasonConnectionClosed, Message: "connection closed", Err: err}
}

// NewAuthenticationRejectedError wraps an auth-rejection close.
func NewAuthenticationRejectedError(err error) *Error {
	return &Error{Reason: ReasonAuthenticationRejected, Message: "authentication rejected", Err: err}
}

// classifyTransportErr maps a terminal transport error to a call end reason.
// A nil error means the connection was closed locally; that is not a fault.
func classifyTransportErr(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *transport.CloseError
	if errors.As(err, &ce) {
		if ce.AuthenticationRejected() {
			return NewAuthenticationRejectedError(ce)
		}
		return NewConnectionClosedError(ce)
	}
	return NewConnectionClosedError(err)
}
