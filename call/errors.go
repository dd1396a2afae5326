package call

import (
	"errors"
	"fmt"
)

// ErrorKind is the public error taxonomy surfaced by the call
// package's API.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota
	KindCallNotFound
	KindInvalidStateTransition
	KindLimitExceeded
	KindNotConnected
	KindOversizedPayload
	KindProtocolError
	KindStreamClosed
	KindIncompatibleAudio
	KindIncompatibleVideo
	KindInsufficientBandwidth
	KindDuplicateCapabilityExchange
	KindTransportError
	KindTimeout
	KindCancelled
	KindInternal
)

// String renders the kind for logs and Error.Error().
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindCallNotFound:
		return "CallNotFound"
	case KindInvalidStateTransition:
		return "InvalidStateTransition"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindNotConnected:
		return "NotConnected"
	case KindOversizedPayload:
		return "OversizedPayload"
	case KindProtocolError:
		return "ProtocolError"
	case KindStreamClosed:
		return "StreamClosed"
	case KindIncompatibleAudio:
		return "IncompatibleAudio"
	case KindIncompatibleVideo:
		return "IncompatibleVideo"
	case KindInsufficientBandwidth:
		return "InsufficientBandwidth"
	case KindDuplicateCapabilityExchange:
		return "DuplicateCapabilityExchange"
	case KindTransportError:
		return "TransportError"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the structured error the call package's API returns. It
// carries a stable Kind a caller can switch on, in addition to being
// classifiable via errors.Is against the sentinels below.
type Error struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// newErr constructs an *Error, wrapping the matching sentinel so
// errors.Is(err, ErrCallNotFound) keeps working alongside a Kind
// switch.
func newErr(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: sentinelFor(kind)}
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindCallNotFound:
		return ErrCallNotFound
	case KindInvalidStateTransition:
		return ErrInvalidStateTransition
	case KindLimitExceeded:
		return ErrLimitExceeded
	case KindNotConnected:
		return ErrNotConnected
	case KindOversizedPayload:
		return ErrOversizedPayload
	case KindProtocolError:
		return ErrProtocolError
	case KindStreamClosed:
		return ErrStreamClosed
	case KindIncompatibleAudio:
		return ErrIncompatibleAudio
	case KindIncompatibleVideo:
		return ErrIncompatibleVideo
	case KindInsufficientBandwidth:
		return ErrInsufficientBandwidth
	case KindDuplicateCapabilityExchange:
		return ErrDuplicateCapabilityExchange
	case KindTransportError:
		return ErrTransportError
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrInternal
	}
}

// Sentinel errors, one per taxonomy entry, for errors.Is-style checks.
var (
	ErrInvalidInput                = errors.New("call: invalid input")
	ErrCallNotFound                = errors.New("call: call not found")
	ErrInvalidStateTransition      = errors.New("call: invalid state transition")
	ErrLimitExceeded               = errors.New("call: concurrent call limit exceeded")
	ErrNotConnected                = errors.New("call: not connected")
	ErrOversizedPayload            = errors.New("call: oversized payload")
	ErrProtocolError               = errors.New("call: protocol error")
	ErrStreamClosed                = errors.New("call: stream closed")
	ErrIncompatibleAudio           = errors.New("call: incompatible audio capability")
	ErrIncompatibleVideo           = errors.New("call: incompatible video capability")
	ErrInsufficientBandwidth       = errors.New("call: insufficient bandwidth")
	ErrDuplicateCapabilityExchange = errors.New("call: duplicate capability exchange")
	ErrTransportError              = errors.New("call: transport error")
	ErrTimeout                     = errors.New("call: timeout")
	ErrCancelled                   = errors.New("call: cancelled")
	ErrInternal                    = errors.New("call: internal error")
)
