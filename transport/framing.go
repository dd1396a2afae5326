package transport

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// MaxFramePayload is the hard cap on a single frame's payload size,
// imposed by the 2-byte big-endian length prefix.
const MaxFramePayload = 65535

// frameHeaderSize is the number of bytes preceding the payload: one
// type byte plus a 2-byte big-endian length.
const frameHeaderSize = 3

// Frame serializes one typed media unit as
// type(1) || length(2, big-endian) || payload.
//
// It fails with ErrOversizedPayload if payload exceeds MaxFramePayload
// bytes, and with ErrInvalidStreamType if t is not one of the five
// known stream types.
func Frame(t StreamType, payload []byte) ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidStreamType
	}
	if len(payload) > MaxFramePayload {
		return nil, ErrOversizedPayload
	}

	out := make([]byte, frameHeaderSize+len(payload))
	out[0] = byte(t)
	binary.BigEndian.PutUint16(out[1:3], uint16(len(payload)))
	copy(out[3:], payload)
	return out, nil
}

// Unframe parses a single frame from the front of buf, returning the
// stream type, the payload, and the unconsumed remainder.
//
// It fails with ErrTruncated if buf holds fewer than frameHeaderSize
// bytes or fewer payload bytes than the declared length, and with
// ErrInvalidStreamType for an unknown type tag.
func Unframe(buf []byte) (t StreamType, payload []byte, rest []byte, err error) {
	if len(buf) < frameHeaderSize {
		return 0, nil, buf, ErrTruncated
	}

	t = StreamType(buf[0])
	if !t.Valid() {
		return 0, nil, buf, ErrInvalidStreamType
	}

	length := int(binary.BigEndian.Uint16(buf[1:3]))
	if len(buf)-frameHeaderSize < length {
		return 0, nil, buf, ErrTruncated
	}

	payload = buf[frameHeaderSize : frameHeaderSize+length]
	rest = buf[frameHeaderSize+length:]
	return t, payload, rest, nil
}

// Framed is one decoded (type, payload) pair produced by SplitFrames.
type Framed struct {
	Type    StreamType
	Payload []byte
}

// SplitFrames greedily decodes every complete frame at the front of
// buf and returns the leftover bytes that make up a partial trailing
// frame, if any, for the caller to buffer against the next read.
//
// A malformed frame (invalid type tag) aborts decoding and returns the
// frames decoded so far plus the error; the caller should treat the
// stream as broken rather than resynchronize.
func SplitFrames(buf []byte) (frames []Framed, remainder []byte, err error) {
	remainder = buf
	for {
		t, payload, rest, uerr := Unframe(remainder)
		if uerr == ErrTruncated {
			return frames, remainder, nil
		}
		if uerr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SplitFrames",
				"error":    uerr,
			}).Warn("dropping malformed frame stream")
			return frames, remainder, uerr
		}

		// Copy the payload out of the shared backing array so callers
		// may retain a Framed after the buffer is reused.
		owned := make([]byte, len(payload))
		copy(owned, payload)
		frames = append(frames, Framed{Type: t, Payload: owned})
		remainder = rest

		if len(remainder) == 0 {
			return frames, remainder, nil
		}
	}
}
