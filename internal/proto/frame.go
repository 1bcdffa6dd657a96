package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxFrameBytes caps the size of an encoded outbound frame. The server's
// per-command text limits (VAR chat_max etc.) are enforced separately at
// validation time; this is a transport-level backstop.
const MaxFrameBytes = 64 << 10

var (
	// ErrEmptyFrame is returned when a frame has no command token.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrFrameTooLarge is returned when an encoded frame exceeds MaxFrameBytes.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Frame is one unit of the F-Chat wire protocol: a three-letter command
// token, optionally followed by a single space and a JSON object payload.
// The payload is kept verbatim so a parsed frame re-encodes byte-for-byte.
type Frame struct {
	Command string
	Payload json.RawMessage
}

// ParseFrame splits a raw websocket text message into command and payload.
// The payload, if present, is retained exactly as received; it is not
// validated here so that unknown commands can still be logged verbatim.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	if i := bytes.IndexByte(raw, ' '); i >= 0 {
		payload := make(json.RawMessage, len(raw)-i-1)
		copy(payload, raw[i+1:])
		return Frame{Command: string(raw[:i]), Payload: payload}, nil
	}

	return Frame{Command: string(raw)}, nil
}

// Encode renders the frame back into wire form.
func (f Frame) Encode() ([]byte, error) {
	if f.Command == "" {
		return nil, ErrEmptyFrame
	}

	size := len(f.Command)
	if len(f.Payload) > 0 {
		size += 1 + len(f.Payload)
	}
	if size > MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	out := make([]byte, 0, size)
	out = append(out, f.Command...)
	if len(f.Payload) > 0 {
		out = append(out, ' ')
		out = append(out, f.Payload...)
	}
	return out, nil
}

// UnknownCommandError reports an inbound command token outside the
// documented set. The frame is discarded; the connection is unaffected.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown server command %q", e.Command)
}

// MalformedFrameError reports a recognised command whose payload failed to
// decode. The frame is discarded; the connection is unaffected.
type MalformedFrameError struct {
	Command string
	Err     error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Command, e.Err)
}

func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}
