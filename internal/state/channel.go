package state

import (
	"sort"
	"time"

	"snowchat/internal/proto"
)

// channelState is the tracked form of a joined channel. Occupants are a
// set; history is a bounded ring.
type channelState struct {
	title       string
	mode        proto.ChannelMode
	description string
	owner       string
	ops         []string
	occupants   map[string]struct{}
	messages    []ChatMessage
}

// ChannelInfo is the copy-on-read form of a channel handed to snapshot
// readers and delta subscribers. Messages is only populated in snapshots.
type ChannelInfo struct {
	Name        string
	Title       string
	Mode        proto.ChannelMode
	Description string
	Owner       string
	Ops         []string
	Occupants   []string
	Messages    []ChatMessage
}

// channel returns the tracked entry, creating a bare one when the name is
// unknown so late or out-of-order frames never fail. Caller holds the
// write lock.
func (s *Store) channel(name string) *channelState {
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch := &channelState{title: name, mode: proto.ModeBoth, occupants: make(map[string]struct{})}
	s.channels[name] = ch
	return ch
}

func (s *Store) applyChannelJoin(p *proto.ChannelJoin) {
	ch := s.channel(p.Channel)
	if p.Title != "" {
		ch.title = p.Title
	}
	who := p.Character.Identity
	ch.occupants[who] = struct{}{}
	s.character(who)
	s.emit(&Delta{Kind: DeltaChannelJoined, Channel: p.Channel, Character: who})
}

func (s *Store) applyChannelLeave(p *proto.ChannelLeave) {
	ch, ok := s.channels[p.Channel]
	if !ok {
		return
	}
	delete(ch.occupants, p.Character)
	if p.Character == s.self.Character {
		delete(s.channels, p.Channel)
	}
	s.emit(&Delta{Kind: DeltaChannelLeft, Channel: p.Channel, Character: p.Character})
}

func (s *Store) applyChannelRoster(p *proto.ChannelRoster) {
	ch := s.channel(p.Channel)
	ch.mode = p.Mode
	ch.occupants = make(map[string]struct{}, len(p.Users))
	for _, u := range p.Users {
		ch.occupants[u.Identity] = struct{}{}
		s.character(u.Identity)
	}
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelDesc(p *proto.ChannelDesc) {
	ch := s.channel(p.Channel)
	ch.description = p.Description
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelMode(p *proto.ChannelModeChange) {
	ch := s.channel(p.Channel)
	ch.mode = p.Mode
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelOwner(p *proto.ChannelOwner) {
	ch := s.channel(p.Channel)
	ch.owner = p.Character
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelOps(p *proto.ChannelOps) {
	ch := s.channel(p.Channel)
	ch.ops = append([]string(nil), p.Ops...)
	// The first COL entry is the owner slot and may be blank.
	if len(ch.ops) > 0 && ch.owner == "" {
		ch.owner = ch.ops[0]
	}
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelPromote(p *proto.ChannelPromote) {
	ch := s.channel(p.Channel)
	for _, op := range ch.ops {
		if op == p.Character {
			return
		}
	}
	ch.ops = append(ch.ops, p.Character)
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

func (s *Store) applyChannelDemote(p *proto.ChannelDemote) {
	ch := s.channel(p.Channel)
	for i, op := range ch.ops {
		if op == p.Character {
			ch.ops = append(ch.ops[:i], ch.ops[i+1:]...)
			break
		}
	}
	s.emit(&Delta{Kind: DeltaChannelInfo, Channel: p.Channel, Info: s.copyChannel(p.Channel, ch, false)})
}

// applyChannelRemoval covers kicks, bans and timeouts, which all eject a
// character the same way.
func (s *Store) applyChannelRemoval(channel, character string) {
	ch, ok := s.channels[channel]
	if !ok {
		return
	}
	delete(ch.occupants, character)
	if character == s.self.Character {
		delete(s.channels, channel)
	}
	s.emit(&Delta{Kind: DeltaChannelLeft, Channel: channel, Character: character})
}

func (s *Store) applyChannelMessage(channel, sender, text string, kind MessageKind) {
	ch := s.channel(channel)
	if sender != "" {
		s.character(sender)
	}
	m := ChatMessage{Kind: kind, Channel: channel, Sender: sender, Text: text, Time: time.Now()}
	ch.messages = appendBounded(ch.messages, m, s.historyLimit)
	s.emit(&Delta{Kind: DeltaChannelMessage, Channel: channel, Character: sender, Message: &m})
}

// copyChannel builds the copy-on-read form. Caller holds at least the read
// lock.
func (s *Store) copyChannel(name string, ch *channelState, withHistory bool) *ChannelInfo {
	info := &ChannelInfo{
		Name:        name,
		Title:       ch.title,
		Mode:        ch.mode,
		Description: ch.description,
		Owner:       ch.owner,
		Ops:         append([]string(nil), ch.ops...),
		Occupants:   make([]string, 0, len(ch.occupants)),
	}
	for occ := range ch.occupants {
		info.Occupants = append(info.Occupants, occ)
	}
	sort.Strings(info.Occupants)
	if withHistory {
		info.Messages = append([]ChatMessage(nil), ch.messages...)
	}
	return info
}
