// Package transport owns the raw websocket link. The engine only sees the
// Conn and Dialer interfaces, so tests drive it with a scripted fake
// instead of a live server.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"
)

// Conn is one live server connection. ReadFrame and WriteFrame are
// independent halves: one reader and one writer may use them concurrently,
// and cancelling the context passed to ReadFrame kills the connection.
type Conn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// IsNormalClose reports whether err is an orderly shutdown rather than a
// failure, used to pick the log level when a session ends.
func IsNormalClose(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
