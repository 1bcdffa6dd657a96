// Package state is the reactive session store: a single writer (the
// engine's dispatch goroutine) applies decoded server frames, while any
// number of readers take copy-on-read snapshots or subscribe to scoped
// delta streams. Readers never block the writer; a slow subscriber has its
// pending deltas collapsed into one resync marker instead.
package state

import (
	"sort"
	"sync"
	"time"

	"snowchat/internal/proto"
)

// Identity is the session's own account and character.
type Identity struct {
	Account   string
	Character string
}

// Store holds everything the server has told us about the current session.
type Store struct {
	mu           sync.RWMutex
	historyLimit int

	conn ConnState
	self Identity

	characters    map[string]*Character
	channels      map[string]*channelState
	conversations map[string]*conversationState

	friends   []string
	bookmarks []string
	ignored   map[string]struct{}
	globalOps []string

	vars      ServerVars
	userCount int
	uptime    *proto.Uptime

	publicChannels []proto.ChannelSummary
	openRooms      []proto.RoomSummary
	publicAt       time.Time
	roomsAt        time.Time

	invites []proto.Invite
	notices []ChatMessage

	subs    map[int]*Subscription
	nextSub int
}

// New builds an empty store. historyLimit bounds per-channel and
// per-conversation rings; non-positive means DefaultHistoryLimit.
func New(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		historyLimit:  historyLimit,
		characters:    make(map[string]*Character),
		channels:      make(map[string]*channelState),
		conversations: make(map[string]*conversationState),
		ignored:       make(map[string]struct{}),
		subs:          make(map[int]*Subscription),
	}
}

// Subscribe opens a delta stream filtered by scope. A non-positive buffer
// falls back to DefaultSubscriptionBuffer.
func (s *Store) Subscribe(scope Scope, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Delta, buffer)
	sub := &Subscription{C: ch, id: s.nextSub, scope: scope, ch: ch, store: s}
	s.subs[sub.id] = sub
	s.nextSub++
	return sub
}

func (s *Store) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	close(sub.ch)
}

var resyncDelta = &Delta{Kind: DeltaResync}

// emit fans a delta out to matching subscribers. The writer never blocks:
// when a subscriber's buffer is full its pending deltas are discarded and
// replaced with a single resync marker. Caller holds the write lock.
func (s *Store) emit(d *Delta) {
	for _, sub := range s.subs {
		if !sub.scope.matches(d) {
			continue
		}
		select {
		case sub.ch <- d:
			continue
		default:
		}

	drain:
		for {
			select {
			case <-sub.ch:
			default:
				break drain
			}
		}
		select {
		case sub.ch <- resyncDelta:
		default:
		}
	}
}

// SetConnState publishes a connection state transition.
func (s *Store) SetConnState(cs ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == cs {
		return
	}
	s.conn = cs
	s.emit(&Delta{Kind: DeltaConnState, Conn: cs})
}

// SetSelf records the account and character this session logs in as.
func (s *Store) SetSelf(account, character string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.self = Identity{Account: account, Character: character}
}

// SetBookmarks seeds the bookmark list obtained alongside the API ticket.
func (s *Store) SetBookmarks(bookmarks []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookmarks = append([]string(nil), bookmarks...)
	s.emit(&Delta{Kind: DeltaFriends})
}

// SetBookmarked applies a site-confirmed bookmark change.
func (s *Store) SetBookmarked(character string, bookmarked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, b := range s.bookmarks {
		if b == character {
			idx = i
			break
		}
	}
	switch {
	case bookmarked && idx < 0:
		s.bookmarks = append(s.bookmarks, character)
	case !bookmarked && idx >= 0:
		s.bookmarks = append(s.bookmarks[:idx], s.bookmarks[idx+1:]...)
	default:
		return
	}
	s.emit(&Delta{Kind: DeltaFriends, Character: character})
}

// AddFriend applies a site-confirmed friend pairing.
func (s *Store) AddFriend(character string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.friends {
		if f == character {
			return
		}
	}
	s.friends = append(s.friends, character)
	s.emit(&Delta{Kind: DeltaFriends, Character: character})
}

// RecordNotice surfaces server text that has no channel of its own:
// numbered protocol errors, staff notices, drop reports.
func (s *Store) RecordNotice(sender, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyNotice(sender, text, KindSystem)
}

// SetIgnored applies a client-authoritative ignore-list change ahead of
// the server's confirmation. The later IGN echo is idempotent.
func (s *Store) SetIgnored(character string, ignored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ignored {
		s.ignored[character] = struct{}{}
	} else {
		delete(s.ignored, character)
	}
	s.emit(&Delta{Kind: DeltaFriends, Character: character})
}

// RecordSentMessage appends a message this client sent to a channel's
// history. The server does not echo our own messages back.
func (s *Store) RecordSentMessage(channel, text string, ad bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := KindChat
	if ad {
		kind = KindAd
	}
	s.applyChannelMessage(channel, s.self.Character, text, kind)
}

// RecordSentPrivate appends a private message this client sent.
func (s *Store) RecordSentPrivate(partner, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyPrivateMessage(partner, s.self.Character, text, KindPrivate)
}

// ResetSession drops all server-owned state ahead of a reconnect: the new
// session replays the roster and channel memberships from scratch.
// Conversation history survives, typing indicators do not. Server limits
// stay until re-announced. Every subscriber gets a resync marker.
func (s *Store) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.characters = make(map[string]*Character)
	s.channels = make(map[string]*channelState)
	s.globalOps = nil
	s.userCount = 0
	for partner, conv := range s.conversations {
		conv.Typing = proto.TypingClear
		// Conversations survive the reset, so their partners keep a
		// placeholder entry until the next session reports them.
		s.character(partner)
	}
	s.emit(resyncDelta)
}

// Snapshot is a deep copy of the whole store at one instant.
type Snapshot struct {
	Conn ConnState
	Self Identity

	Characters    map[string]Character
	Channels      map[string]*ChannelInfo
	Conversations map[string]*Conversation

	Friends   []string
	Bookmarks []string
	Ignored   []string
	GlobalOps []string

	Vars      ServerVars
	UserCount int
	Uptime    *proto.Uptime

	PublicChannels  []proto.ChannelSummary
	OpenRooms       []proto.RoomSummary
	PublicFetchedAt time.Time
	RoomsFetchedAt  time.Time

	Invites []proto.Invite
	Notices []ChatMessage
}

// Snapshot copies the full store. The result shares nothing with live
// state; hold it as long as needed.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Conn:            s.conn,
		Self:            s.self,
		Characters:      make(map[string]Character, len(s.characters)),
		Channels:        make(map[string]*ChannelInfo, len(s.channels)),
		Conversations:   make(map[string]*Conversation, len(s.conversations)),
		Friends:         append([]string(nil), s.friends...),
		Bookmarks:       append([]string(nil), s.bookmarks...),
		Ignored:         setToSorted(s.ignored),
		GlobalOps:       append([]string(nil), s.globalOps...),
		Vars:            s.copyVars(),
		UserCount:       s.userCount,
		PublicChannels:  append([]proto.ChannelSummary(nil), s.publicChannels...),
		OpenRooms:       append([]proto.RoomSummary(nil), s.openRooms...),
		PublicFetchedAt: s.publicAt,
		RoomsFetchedAt:  s.roomsAt,
		Invites:         append([]proto.Invite(nil), s.invites...),
		Notices:         append([]ChatMessage(nil), s.notices...),
	}
	for name, c := range s.characters {
		snap.Characters[name] = *c
	}
	for name, ch := range s.channels {
		snap.Channels[name] = s.copyChannel(name, ch, true)
	}
	for partner, conv := range s.conversations {
		snap.Conversations[partner] = &Conversation{
			Partner:  partner,
			Typing:   conv.Typing,
			Messages: append([]ChatMessage(nil), conv.messages...),
		}
	}
	if s.uptime != nil {
		up := *s.uptime
		snap.Uptime = &up
	}
	return snap
}

// ConnState returns the current connection state.
func (s *Store) ConnState() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Self returns the session identity.
func (s *Store) Self() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

// Character looks up one roster entry by exact name.
func (s *Store) Character(name string) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[name]
	if !ok {
		return Character{}, false
	}
	return *c, true
}

// Channel copies one channel, history included.
func (s *Store) Channel(name string) (*ChannelInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[name]
	if !ok {
		return nil, false
	}
	return s.copyChannel(name, ch, true), true
}

// Conversation copies one private conversation, history included.
func (s *Store) Conversation(partner string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[partner]
	if !ok {
		return nil, false
	}
	return &Conversation{
		Partner:  partner,
		Typing:   conv.Typing,
		Messages: append([]ChatMessage(nil), conv.messages...),
	}, true
}

// JoinedChannels lists tracked channel names, sorted.
func (s *Store) JoinedChannels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vars returns the announced server limits.
func (s *Store) Vars() ServerVars {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyVars()
}

// IsIgnored reports whether a character is on the ignore list.
func (s *Store) IsIgnored(character string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ignored[character]
	return ok
}

func (s *Store) copyVars() ServerVars {
	v := s.vars
	v.IconBlacklist = append([]string(nil), s.vars.IconBlacklist...)
	return v
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
