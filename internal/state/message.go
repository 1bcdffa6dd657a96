package state

import "time"

// MessageKind distinguishes the flavours of text that land in a history
// ring.
type MessageKind int

const (
	// KindChat is a regular channel message.
	KindChat MessageKind = iota
	// KindAd is a roleplay ad.
	KindAd
	// KindPrivate is a private message.
	KindPrivate
	// KindSystem is server-generated channel text.
	KindSystem
	// KindRoll is a dice roll or bottle spin result.
	KindRoll
	// KindBroadcast is an admin broadcast.
	KindBroadcast
)

// ChatMessage is one entry in a channel or conversation history.
type ChatMessage struct {
	Kind    MessageKind
	Channel string
	Sender  string
	Text    string
	Time    time.Time
}

// DefaultHistoryLimit bounds per-channel and per-conversation history when
// the store is built with a non-positive limit.
const DefaultHistoryLimit = 200

// appendBounded appends m, sliding the window when the ring is full so the
// backing array stays at the limit.
func appendBounded(msgs []ChatMessage, m ChatMessage, limit int) []ChatMessage {
	if len(msgs) >= limit {
		copy(msgs, msgs[len(msgs)-limit+1:])
		msgs = msgs[:limit-1]
	}
	return append(msgs, m)
}
