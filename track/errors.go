package track

import "errors"

// Sentinel errors for the track package.
var (
	ErrNotConnected  = errors.New("track: not connected")
	ErrSendFailed    = errors.New("track: send failed")
	ErrReceiveFailed = errors.New("track: receive failed")
	ErrInvalidKind   = errors.New("track: invalid media kind")
)
