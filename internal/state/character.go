package state

import "snowchat/internal/proto"

// Character is one entry in the global roster.
type Character struct {
	Name      string
	Gender    string
	Status    proto.CharacterStatus
	StatusMsg string
	// Placeholder marks a character first seen through a secondary event
	// (a message, a channel roster) rather than LIS or NLN. Placeholders
	// are upgraded in place when the real presence frame arrives.
	Placeholder bool
}

// character returns the tracked entry, creating a placeholder when the
// name is unknown. Caller holds the write lock.
func (s *Store) character(name string) *Character {
	if c, ok := s.characters[name]; ok {
		return c
	}
	c := &Character{Name: name, Status: proto.StatusOnline, Placeholder: true}
	s.characters[name] = c
	return c
}

func (s *Store) applyRosterPage(p *proto.Roster) {
	for _, entry := range p.Characters {
		name := entry.Name()
		c, ok := s.characters[name]
		if !ok {
			c = &Character{Name: name}
			s.characters[name] = c
		}
		c.Gender = entry.Gender()
		c.Status = proto.CharacterStatus(entry.Status())
		c.StatusMsg = entry.StatusMsg()
		c.Placeholder = false
	}
	s.emit(&Delta{Kind: DeltaRosterLoaded})
}

func (s *Store) applyOnline(p *proto.Online) {
	c, ok := s.characters[p.Identity]
	if !ok {
		c = &Character{Name: p.Identity}
		s.characters[p.Identity] = c
	}
	c.Gender = p.Gender
	c.Status = p.Status
	c.StatusMsg = ""
	c.Placeholder = false
	s.emit(&Delta{Kind: DeltaCharacterOnline, Character: p.Identity, Roster: copyCharacter(c)})
}

func (s *Store) applyOffline(p *proto.Offline) {
	delete(s.characters, p.Character)

	// The server does not send per-channel LCH on disconnect; sweep the
	// character out of every occupant list ourselves.
	for name, ch := range s.channels {
		if _, ok := ch.occupants[p.Character]; ok {
			delete(ch.occupants, p.Character)
			s.emit(&Delta{Kind: DeltaChannelLeft, Channel: name, Character: p.Character})
		}
	}
	if conv, ok := s.conversations[p.Character]; ok && conv.Typing != proto.TypingClear {
		conv.Typing = proto.TypingClear
		s.emit(&Delta{Kind: DeltaTyping, Partner: p.Character, Typing: proto.TypingClear})
	}
	s.emit(&Delta{Kind: DeltaCharacterOffline, Character: p.Character})
}

func (s *Store) applyStatus(p *proto.Status) {
	c := s.character(p.Character)
	c.Status = p.Status
	// An empty statusmsg is a deliberate clear, not an omission.
	c.StatusMsg = p.StatusMsg
	s.emit(&Delta{Kind: DeltaCharacterStatus, Character: p.Character, Roster: copyCharacter(c)})
}

func copyCharacter(c *Character) *Character {
	cp := *c
	return &cp
}
