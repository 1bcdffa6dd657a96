package state

import "snowchat/internal/proto"

// Apply folds one decoded server frame into the store and notifies
// subscribers. It must only be called from the engine's dispatch
// goroutine; snapshots and subscriptions are safe from anywhere.
//
// Frames that carry no session state (PIN, HLO, ERR, SFC, PRD, KID) fall
// through untouched, the engine reacts to those directly.
func (s *Store) Apply(p proto.ServerPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := p.(type) {
	case *proto.Identified:
		s.self.Character = v.Character
	case *proto.UserCount:
		s.applyUserCount(v)
	case *proto.Variable:
		s.applyVariable(v)
	case *proto.Roster:
		s.applyRosterPage(v)
	case *proto.Online:
		s.applyOnline(v)
	case *proto.Offline:
		s.applyOffline(v)
	case *proto.Status:
		s.applyStatus(v)
	case *proto.Typing:
		s.applyTyping(v)
	case *proto.ChannelJoin:
		s.applyChannelJoin(v)
	case *proto.ChannelLeave:
		s.applyChannelLeave(v)
	case *proto.ChannelRoster:
		s.applyChannelRoster(v)
	case *proto.ChannelDesc:
		s.applyChannelDesc(v)
	case *proto.ChannelModeChange:
		s.applyChannelMode(v)
	case *proto.ChannelOwner:
		s.applyChannelOwner(v)
	case *proto.ChannelOps:
		s.applyChannelOps(v)
	case *proto.ChannelPromote:
		s.applyChannelPromote(v)
	case *proto.ChannelDemote:
		s.applyChannelDemote(v)
	case *proto.ChannelKick:
		s.applyChannelRemoval(v.Channel, v.Character)
	case *proto.ChannelBan:
		s.applyChannelRemoval(v.Channel, v.Character)
	case *proto.ChannelTimeout:
		s.applyChannelRemoval(v.Channel, v.Character)
	case *proto.Message:
		s.applyChannelMessage(v.Channel, v.Character, v.Message, KindChat)
	case *proto.Ad:
		s.applyChannelMessage(v.Channel, v.Character, v.Message, KindAd)
	case *proto.PrivateMessage:
		s.applyPrivateMessage(v.Character, v.Character, v.Message, KindPrivate)
	case *proto.SystemMessage:
		if v.Channel == "" {
			s.applyNotice("", v.Message, KindSystem)
		} else {
			s.applyChannelMessage(v.Channel, "", v.Message, KindSystem)
		}
	case *proto.Broadcast:
		s.applyNotice(v.Character, v.Message, KindBroadcast)
	case *proto.GlobalOps:
		s.applyGlobalOps(v)
	case *proto.GlobalPromote:
		s.applyGlobalPromote(v)
	case *proto.GlobalDemote:
		s.applyGlobalDemote(v)
	case *proto.Friends:
		s.applyFriends(v)
	case *proto.Ignore:
		s.applyIgnore(v)
	case *proto.PublicChannels:
		s.applyPublicChannels(v)
	case *proto.OpenRooms:
		s.applyOpenRooms(v)
	case *proto.Invite:
		s.applyInvite(v)
	case *proto.Roll:
		s.applyRoll(v)
	case *proto.Bridge:
		s.applyNotice(v.Character, v.Type, KindSystem)
	case *proto.Uptime:
		s.applyUptime(v)
	}
}

// applyRoll lands a roll where its audience is: channel history for
// channel rolls, conversation history for private ones.
func (s *Store) applyRoll(p *proto.Roll) {
	if p.Channel != "" {
		s.applyChannelMessage(p.Channel, p.Character, p.Message, KindRoll)
		return
	}
	partner := p.Character
	if partner == s.self.Character && p.Recipient != "" {
		partner = p.Recipient
	}
	s.applyPrivateMessage(partner, p.Character, p.Message, KindRoll)
}
