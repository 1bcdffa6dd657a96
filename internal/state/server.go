package state

import (
	"time"

	"snowchat/internal/proto"
)

// ServerVars collects the limits the server announces through VAR frames.
// Numeric fields are zero until announced; validation treats zero as
// "unknown, do not enforce".
type ServerVars struct {
	// ChatMax caps channel message length in bytes.
	ChatMax int
	// PrivMax caps private message length in bytes.
	PrivMax int
	// AdMax caps roleplay ad length in bytes.
	AdMax int
	// MsgFlood is the minimum seconds between channel messages.
	MsgFlood float64
	// AdFlood is the minimum seconds between ads.
	AdFlood float64
	// IconBlacklist lists channels where eicon tags are stripped.
	IconBlacklist []string
	// Permissions is the account permission bitfield.
	Permissions int64
}

// invitesLimit bounds the retained channel invitation ring.
const invitesLimit = 50

func (s *Store) applyVariable(p *proto.Variable) {
	switch p.Variable {
	case "chat_max":
		if f, err := p.Float(); err == nil {
			s.vars.ChatMax = int(f)
		}
	case "priv_max":
		if f, err := p.Float(); err == nil {
			s.vars.PrivMax = int(f)
		}
	case "lfrp_max":
		if f, err := p.Float(); err == nil {
			s.vars.AdMax = int(f)
		}
	case "msg_flood":
		if f, err := p.Float(); err == nil {
			s.vars.MsgFlood = f
		}
	case "lfrp_flood":
		if f, err := p.Float(); err == nil {
			s.vars.AdFlood = f
		}
	case "permissions":
		if f, err := p.Float(); err == nil {
			s.vars.Permissions = int64(f)
		}
	case "icon_blacklist":
		if list, err := p.StringList(); err == nil {
			s.vars.IconBlacklist = list
		}
	default:
		// Unrecognised variables are forward compatibility; skip.
		return
	}
	s.emit(&Delta{Kind: DeltaServerVars})
}

func (s *Store) applyUserCount(p *proto.UserCount) {
	s.userCount = p.Count
	s.emit(&Delta{Kind: DeltaServerInfo})
}

func (s *Store) applyUptime(p *proto.Uptime) {
	up := *p
	s.uptime = &up
	s.userCount = p.Users
	s.emit(&Delta{Kind: DeltaServerInfo})
}

func (s *Store) applyGlobalOps(p *proto.GlobalOps) {
	s.globalOps = append([]string(nil), p.Ops...)
	s.emit(&Delta{Kind: DeltaServerInfo})
}

func (s *Store) applyGlobalPromote(p *proto.GlobalPromote) {
	for _, op := range s.globalOps {
		if op == p.Character {
			return
		}
	}
	s.globalOps = append(s.globalOps, p.Character)
	s.emit(&Delta{Kind: DeltaServerInfo, Character: p.Character})
}

func (s *Store) applyGlobalDemote(p *proto.GlobalDemote) {
	for i, op := range s.globalOps {
		if op == p.Character {
			s.globalOps = append(s.globalOps[:i], s.globalOps[i+1:]...)
			break
		}
	}
	s.emit(&Delta{Kind: DeltaServerInfo, Character: p.Character})
}

func (s *Store) applyFriends(p *proto.Friends) {
	s.friends = append([]string(nil), p.Characters...)
	s.emit(&Delta{Kind: DeltaFriends})
}

func (s *Store) applyIgnore(p *proto.Ignore) {
	switch p.Action {
	case "init", "list":
		s.ignored = make(map[string]struct{}, len(p.Characters))
		for _, c := range p.Characters {
			s.ignored[c] = struct{}{}
		}
	case "add":
		s.ignored[p.Character] = struct{}{}
	case "delete":
		delete(s.ignored, p.Character)
	default:
		// "notify" marks a suppressed delivery; nothing to track.
		return
	}
	s.emit(&Delta{Kind: DeltaFriends, Character: p.Character})
}

func (s *Store) applyPublicChannels(p *proto.PublicChannels) {
	s.publicChannels = append([]proto.ChannelSummary(nil), p.Channels...)
	s.publicAt = time.Now()
	s.emit(&Delta{Kind: DeltaDirectory})
}

func (s *Store) applyOpenRooms(p *proto.OpenRooms) {
	s.openRooms = append([]proto.RoomSummary(nil), p.Channels...)
	s.roomsAt = time.Now()
	s.emit(&Delta{Kind: DeltaDirectory})
}

func (s *Store) applyInvite(p *proto.Invite) {
	inv := *p
	s.invites = append(s.invites, inv)
	if len(s.invites) > invitesLimit {
		s.invites = s.invites[len(s.invites)-invitesLimit:]
	}
	s.emit(&Delta{Kind: DeltaInvite, Character: p.Sender, Channel: p.Name, Invite: &inv})
}

func (s *Store) applyNotice(sender, text string, kind MessageKind) {
	m := ChatMessage{Kind: kind, Sender: sender, Text: text, Time: time.Now()}
	s.notices = appendBounded(s.notices, m, s.historyLimit)
	s.emit(&Delta{Kind: DeltaNotice, Character: sender, Message: &m})
}
