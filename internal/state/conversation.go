package state

import (
	"time"

	"snowchat/internal/proto"
)

// conversationState tracks one private conversation.
type conversationState struct {
	Typing   proto.TypingStatus
	messages []ChatMessage
}

// Conversation is the copy-on-read form of a private conversation.
// Messages is only populated in snapshots.
type Conversation struct {
	Partner  string
	Typing   proto.TypingStatus
	Messages []ChatMessage
}

// conversation returns the tracked entry, creating one on first contact.
// Caller holds the write lock.
func (s *Store) conversation(partner string) *conversationState {
	if conv, ok := s.conversations[partner]; ok {
		return conv
	}
	conv := &conversationState{Typing: proto.TypingClear}
	s.conversations[partner] = conv
	return conv
}

func (s *Store) applyTyping(p *proto.Typing) {
	conv := s.conversation(p.Character)
	conv.Typing = p.Status
	s.emit(&Delta{Kind: DeltaTyping, Partner: p.Character, Typing: p.Status})
}

// applyPrivateMessage records a message in a conversation. sender is the
// wire sender; partner keys the conversation, which differs from sender
// for messages we sent ourselves.
func (s *Store) applyPrivateMessage(partner, sender, text string, kind MessageKind) {
	conv := s.conversation(partner)
	s.character(partner)
	// A delivered message supersedes any stale typing indicator.
	if sender == partner && conv.Typing != proto.TypingClear {
		conv.Typing = proto.TypingClear
		s.emit(&Delta{Kind: DeltaTyping, Partner: partner, Typing: proto.TypingClear})
	}
	m := ChatMessage{Kind: kind, Sender: sender, Text: text, Time: time.Now()}
	conv.messages = appendBounded(conv.messages, m, s.historyLimit)
	s.emit(&Delta{Kind: DeltaPrivateMessage, Partner: partner, Character: sender, Message: &m})
}
