package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means no live session exists to write to.
	ErrNotConnected = errors.New("not connected")
	// ErrEmptyMessage rejects whitespace-only outbound text.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMessageTooLong rejects text over the server-announced limit.
	ErrMessageTooLong = errors.New("message exceeds server limit")
	// ErrBadStatus rejects statuses a client may not set itself.
	ErrBadStatus = errors.New("status cannot be set")
	// ErrNotJoined rejects sends to a channel this session has not
	// joined.
	ErrNotJoined = errors.New("channel not joined")
	// ErrEmptyChannel rejects a blank channel name.
	ErrEmptyChannel = errors.New("empty channel name")
	// ErrWrongChannelMode rejects ads in chat-only channels and chat in
	// ads-only channels.
	ErrWrongChannelMode = errors.New("channel mode disallows this message kind")
	// ErrEmptyCharacter rejects a blank character name.
	ErrEmptyCharacter = errors.New("empty character name")
	// ErrSiteUnavailable means no site API was configured, so bookmark
	// and friend mutations have nowhere to go.
	ErrSiteUnavailable = errors.New("site api not configured")
	// ErrAuthFailed means the site rejected the account credentials;
	// retrying cannot help.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrMaxAttempts means consecutive reconnect attempts ran out.
	ErrMaxAttempts = errors.New("reconnect attempts exhausted")
)

// errStaleTicket forces one reconnect with a fresh ticket after the chat
// server rejects identification.
var errStaleTicket = errors.New("identification rejected, ticket refreshed")

// FatalError is a numbered server rejection after which reconnecting is
// wrong: bans, duplicate sessions, staff kicks.
type FatalError struct {
	Number  int
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Number, e.Message)
}

// fatalNumbers are the ERR codes that terminate the session for good.
// Everything else is informational or transient; notably 2 (server full)
// stays retryable.
var fatalNumbers = map[int]struct{}{
	9:  {}, // banned
	30: {}, // too many sessions for this account
	31: {}, // this character logged in from elsewhere
	33: {}, // invalid authentication method
	39: {}, // timed out by staff
	40: {}, // kicked by staff
}

func isFatalNumber(n int) bool {
	_, ok := fatalNumbers[n]
	return ok
}
