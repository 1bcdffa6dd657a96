// Package store defines the local chat-log archive. The engine tees every
// delivered message into it; archive failures never touch the protocol
// path.
package store

import (
	"context"
	"time"
)

// Scope says which kind of log a record belongs to.
type Scope string

const (
	// ScopeChannel records live in a channel log keyed by channel name.
	ScopeChannel Scope = "channel"
	// ScopePrivate records live in a conversation log keyed by the
	// partner's character name.
	ScopePrivate Scope = "private"
	// ScopeConsole records are broadcasts and system notices.
	ScopeConsole Scope = "console"
)

// Record is one archived message.
type Record struct {
	// ID is a UUID assigned by the engine at archive time.
	ID string
	// Scope and Key locate the log: channel name, partner name, or ""
	// for console records.
	Scope Scope
	Key   string
	// Sender is empty for server-generated text.
	Sender string
	// Kind mirrors the in-memory message kind: chat, ad, private,
	// system, roll, broadcast.
	Kind   string
	Body   string
	SentAt time.Time
}

// LogStore persists chat history.
type LogStore interface {
	// Append archives one record.
	Append(ctx context.Context, rec *Record) error

	// Recent returns up to limit records for one log, oldest first.
	Recent(ctx context.Context, scope Scope, key string, limit int) ([]*Record, error)

	// Close releases the underlying storage.
	Close() error
}
