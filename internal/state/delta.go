package state

import "snowchat/internal/proto"

// DeltaKind is a notification the store emits to subscribers.
type DeltaKind int

const (
	// DeltaResync tells a subscriber its delta stream overflowed; it must
	// re-read a snapshot before trusting further deltas.
	DeltaResync DeltaKind = iota
	// DeltaConnState reports a connection state transition.
	DeltaConnState
	// DeltaRosterLoaded reports a bulk roster page; snapshot to observe.
	DeltaRosterLoaded
	// DeltaCharacterOnline reports a character coming online.
	DeltaCharacterOnline
	// DeltaCharacterOffline reports a character going offline.
	DeltaCharacterOffline
	// DeltaCharacterStatus reports a status or status-message change.
	DeltaCharacterStatus
	// DeltaChannelJoined reports a character (possibly self) entering a
	// channel.
	DeltaChannelJoined
	// DeltaChannelLeft reports a character (possibly self) leaving a
	// channel, including kicks and bans.
	DeltaChannelLeft
	// DeltaChannelInfo reports channel metadata changes: title, mode,
	// description, owner, operator list.
	DeltaChannelInfo
	// DeltaChannelMessage reports a chat message, ad, roll or system
	// notice delivered to a channel.
	DeltaChannelMessage
	// DeltaPrivateMessage reports a private message or roll.
	DeltaPrivateMessage
	// DeltaTyping reports a conversation partner's typing indicator.
	DeltaTyping
	// DeltaFriends reports a friends, bookmarks or ignore list change.
	DeltaFriends
	// DeltaServerVars reports new server-announced variables.
	DeltaServerVars
	// DeltaServerInfo reports user count, uptime or operator changes.
	DeltaServerInfo
	// DeltaDirectory reports a fresh public-channel or room listing.
	DeltaDirectory
	// DeltaInvite reports a channel invitation.
	DeltaInvite
	// DeltaNotice reports a broadcast or site notification.
	DeltaNotice
)

// Delta describes one state change. Only the fields relevant to Kind are
// set. Pointer fields are copies; subscribers may keep them but must not
// mutate them, the same delta is shared across subscribers.
type Delta struct {
	Kind      DeltaKind
	Conn      ConnState
	Character string
	Channel   string
	Partner   string
	Typing    proto.TypingStatus
	Roster    *Character
	Info      *ChannelInfo
	Message   *ChatMessage
	Invite    *proto.Invite
}

// ScopeKind selects which slice of the store a subscription observes.
type ScopeKind int

const (
	// ScopeAll observes every delta.
	ScopeAll ScopeKind = iota
	// ScopeConnection observes connection state transitions only.
	ScopeConnection
	// ScopeRoster observes the global character roster plus friends,
	// bookmarks and ignores.
	ScopeRoster
	// ScopeChannel observes a single channel, or all channels when the
	// name is empty.
	ScopeChannel
	// ScopePrivate observes a single conversation, or all conversations
	// when the partner is empty.
	ScopePrivate
	// ScopeServer observes server variables, statistics, directories and
	// notices.
	ScopeServer
)

// Scope is a subscription filter.
type Scope struct {
	Kind    ScopeKind
	Channel string
	Partner string
}

// matches reports whether a delta is visible to this scope. Resyncs are
// visible everywhere so no subscriber misses an overflow signal.
func (sc Scope) matches(d *Delta) bool {
	if d.Kind == DeltaResync || sc.Kind == ScopeAll {
		return true
	}

	switch d.Kind {
	case DeltaConnState:
		return sc.Kind == ScopeConnection
	case DeltaRosterLoaded, DeltaCharacterOnline, DeltaCharacterOffline,
		DeltaCharacterStatus, DeltaFriends:
		return sc.Kind == ScopeRoster
	case DeltaChannelJoined, DeltaChannelLeft, DeltaChannelInfo, DeltaChannelMessage:
		return sc.Kind == ScopeChannel && (sc.Channel == "" || sc.Channel == d.Channel)
	case DeltaPrivateMessage, DeltaTyping:
		return sc.Kind == ScopePrivate && (sc.Partner == "" || sc.Partner == d.Partner)
	case DeltaServerVars, DeltaServerInfo, DeltaDirectory, DeltaInvite, DeltaNotice:
		return sc.Kind == ScopeServer
	default:
		return false
	}
}

// DefaultSubscriptionBuffer is the delta channel capacity used when
// Subscribe is called with a non-positive buffer size.
const DefaultSubscriptionBuffer = 32

// Subscription is a live delta stream. Receive from C; Close releases it.
type Subscription struct {
	// C delivers deltas in the order the store applied them.
	C <-chan *Delta

	id    int
	scope Scope
	ch    chan *Delta
	store *Store
}

// Close detaches the subscription and closes C. Safe to call once.
func (sub *Subscription) Close() {
	sub.store.unsubscribe(sub.id)
}
