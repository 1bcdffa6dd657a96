package proto

import "encoding/json"

// Server command tokens. These are the inbound half of the protocol; a
// handful (PIN, MSG, PRI, STA, TPN, IGN, CDS, CIU, CKU, CBU, CTU, RLL,
// JCH, LCH, CHA, ORS, UPT, RMO, COL) share their token with a client
// command of the same name.
const (
	CmdIdentified     = "IDN"
	CmdError          = "ERR"
	CmdPing           = "PIN"
	CmdHello          = "HLO"
	CmdUserCount      = "CON"
	CmdVariable       = "VAR"
	CmdRoster         = "LIS"
	CmdOnline         = "NLN"
	CmdOffline        = "FLN"
	CmdStatus         = "STA"
	CmdTyping         = "TPN"
	CmdChannelJoin    = "JCH"
	CmdChannelLeave   = "LCH"
	CmdChannelRoster  = "ICH"
	CmdChannelDesc    = "CDS"
	CmdChannelMode    = "RMO"
	CmdChannelOwner   = "CSO"
	CmdChannelOps     = "COL"
	CmdChannelPromote = "COA"
	CmdChannelDemote  = "COR"
	CmdChannelKick    = "CKU"
	CmdChannelBan     = "CBU"
	CmdChannelTimeout = "CTU"
	CmdMessage        = "MSG"
	CmdAd             = "LRP"
	CmdPrivateMessage = "PRI"
	CmdSystemMessage  = "SYS"
	CmdBroadcast      = "BRO"
	CmdGlobalOps      = "ADL"
	CmdGlobalPromote  = "AOP"
	CmdGlobalDemote   = "DOP"
	CmdFriends        = "FRL"
	CmdIgnore         = "IGN"
	CmdPublicChannels = "CHA"
	CmdOpenRooms      = "ORS"
	CmdInvite         = "CIU"
	CmdRoll           = "RLL"
	CmdBridge         = "RTB"
	CmdStaffCall      = "SFC"
	CmdUptime         = "UPT"
	CmdKinkData       = "KID"
	CmdProfileData    = "PRD"
)

// ChannelMode says which message kinds a channel accepts.
type ChannelMode string

const (
	ModeChat ChannelMode = "chat"
	ModeAds  ChannelMode = "ads"
	ModeBoth ChannelMode = "both"
)

// CharacterStatus is an online character's availability.
type CharacterStatus string

const (
	StatusOnline  CharacterStatus = "online"
	StatusLooking CharacterStatus = "looking"
	StatusIdle    CharacterStatus = "idle"
	StatusAway    CharacterStatus = "away"
	StatusBusy    CharacterStatus = "busy"
	StatusDND     CharacterStatus = "dnd"
	StatusCrown   CharacterStatus = "crown"
)

// TypingStatus is a character's typing indicator state in a private
// conversation.
type TypingStatus string

const (
	TypingClear  TypingStatus = "clear"
	TypingPaused TypingStatus = "paused"
	TypingTyping TypingStatus = "typing"
)

// ServerPayload is implemented by every decoded inbound command.
type ServerPayload interface {
	// ServerCommand returns the three-letter wire token.
	ServerCommand() string
}

// Identified confirms a successful IDN handshake.
type Identified struct {
	Character string `json:"character"`
}

func (Identified) ServerCommand() string { return CmdIdentified }

// ServerError carries a numbered protocol error. Fatal numbers terminate
// the session; the rest are informational.
type ServerError struct {
	Number  int    `json:"number"`
	Message string `json:"message"`
}

func (ServerError) ServerCommand() string { return CmdError }

// Ping is the heartbeat in both directions: the server sends it bare and
// expects a bare PIN back.
type Ping struct{}

func (Ping) ServerCommand() string { return CmdPing }
func (Ping) ClientCommand() string { return CmdPing }

// Hello is the server's greeting banner, sent before IDN completes.
type Hello struct {
	Message string `json:"message"`
}

func (Hello) ServerCommand() string { return CmdHello }

// UserCount reports how many characters are connected.
type UserCount struct {
	Count int `json:"count"`
}

func (UserCount) ServerCommand() string { return CmdUserCount }

// Variable announces one server configuration value. Values are
// heterogeneous (numbers, strings, string lists) so the raw JSON is kept
// and interpreted by the store.
type Variable struct {
	Variable string          `json:"variable"`
	Value    json.RawMessage `json:"value"`
}

func (Variable) ServerCommand() string { return CmdVariable }

// Float interprets the value as a number.
func (v Variable) Float() (float64, error) {
	var f float64
	err := json.Unmarshal(v.Value, &f)
	return f, err
}

// StringList interprets the value as a list of strings.
func (v Variable) StringList() ([]string, error) {
	var s []string
	err := json.Unmarshal(v.Value, &s)
	return s, err
}

// RosterEntry is one LIS tuple: name, gender, status, status message.
type RosterEntry [4]string

func (r RosterEntry) Name() string      { return r[0] }
func (r RosterEntry) Gender() string    { return r[1] }
func (r RosterEntry) Status() string    { return r[2] }
func (r RosterEntry) StatusMsg() string { return r[3] }

// Roster is one page of the initial online-character list. The server may
// send several LIS frames back to back.
type Roster struct {
	Characters []RosterEntry `json:"characters"`
}

func (Roster) ServerCommand() string { return CmdRoster }

// Online announces a character coming online.
type Online struct {
	Identity string          `json:"identity"`
	Gender   string          `json:"gender"`
	Status   CharacterStatus `json:"status"`
}

func (Online) ServerCommand() string { return CmdOnline }

// Offline announces a character going offline.
type Offline struct {
	Character string `json:"character"`
}

func (Offline) ServerCommand() string { return CmdOffline }

// Status announces a character's status change. An empty statusmsg clears
// the previous message.
type Status struct {
	Status    CharacterStatus `json:"status"`
	Character string          `json:"character"`
	StatusMsg string          `json:"statusmsg"`
}

func (Status) ServerCommand() string { return CmdStatus }

// Typing relays a private-conversation typing indicator.
type Typing struct {
	Character string       `json:"character"`
	Status    TypingStatus `json:"status"`
}

func (Typing) ServerCommand() string { return CmdTyping }

// CharacterIdentity is the single-field character object used inside JCH
// and ICH payloads.
type CharacterIdentity struct {
	Identity string `json:"identity"`
}

// ChannelJoin announces a character (possibly this client) entering a
// channel.
type ChannelJoin struct {
	Channel   string            `json:"channel"`
	Title     string            `json:"title"`
	Character CharacterIdentity `json:"character"`
}

func (ChannelJoin) ServerCommand() string { return CmdChannelJoin }

// ChannelLeave announces a character leaving a channel.
type ChannelLeave struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (ChannelLeave) ServerCommand() string { return CmdChannelLeave }

// ChannelRoster is the initial occupant list sent after joining a channel.
type ChannelRoster struct {
	Channel string              `json:"channel"`
	Users   []CharacterIdentity `json:"users"`
	Mode    ChannelMode         `json:"mode"`
}

func (ChannelRoster) ServerCommand() string { return CmdChannelRoster }

// ChannelDesc carries a channel's description text.
type ChannelDesc struct {
	Channel     string `json:"channel"`
	Description string `json:"description"`
}

func (ChannelDesc) ServerCommand() string { return CmdChannelDesc }

// ChannelModeChange announces a channel switching message modes.
type ChannelModeChange struct {
	Channel string      `json:"channel"`
	Mode    ChannelMode `json:"mode"`
}

func (ChannelModeChange) ServerCommand() string { return CmdChannelMode }

// ChannelOwner announces a channel ownership transfer.
type ChannelOwner struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (ChannelOwner) ServerCommand() string { return CmdChannelOwner }

// ChannelOps is the full operator list for a channel. The first entry is
// the owner and may be empty.
type ChannelOps struct {
	Channel string   `json:"channel"`
	Ops     []string `json:"oplist"`
}

func (ChannelOps) ServerCommand() string { return CmdChannelOps }

// ChannelPromote announces a character gaining channel-operator rights.
type ChannelPromote struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (ChannelPromote) ServerCommand() string { return CmdChannelPromote }

// ChannelDemote announces a character losing channel-operator rights.
type ChannelDemote struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (ChannelDemote) ServerCommand() string { return CmdChannelDemote }

// ChannelKick announces a character being kicked from a channel.
type ChannelKick struct {
	Channel   string `json:"channel"`
	Operator  string `json:"operator"`
	Character string `json:"character"`
}

func (ChannelKick) ServerCommand() string { return CmdChannelKick }

// ChannelBan announces a character being banned from a channel.
type ChannelBan struct {
	Channel   string `json:"channel"`
	Operator  string `json:"operator"`
	Character string `json:"character"`
}

func (ChannelBan) ServerCommand() string { return CmdChannelBan }

// ChannelTimeout announces a timed channel ban, length in minutes.
type ChannelTimeout struct {
	Channel   string `json:"channel"`
	Operator  string `json:"operator"`
	Character string `json:"character"`
	Length    int    `json:"length"`
}

func (ChannelTimeout) ServerCommand() string { return CmdChannelTimeout }

// Message is a chat message delivered to a channel.
type Message struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
	Message   string `json:"message"`
}

func (Message) ServerCommand() string { return CmdMessage }

// Ad is a roleplay ad delivered to a channel.
type Ad struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
	Message   string `json:"message"`
}

func (Ad) ServerCommand() string { return CmdAd }

// PrivateMessage is a message delivered directly to this client.
type PrivateMessage struct {
	Character string `json:"character"`
	Message   string `json:"message"`
}

func (PrivateMessage) ServerCommand() string { return CmdPrivateMessage }

// SystemMessage is server-generated text scoped to a channel (or global
// when the channel is empty).
type SystemMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (SystemMessage) ServerCommand() string { return CmdSystemMessage }

// Broadcast is an admin message shown to every connected client.
type Broadcast struct {
	Message   string `json:"message"`
	Character string `json:"character"`
}

func (Broadcast) ServerCommand() string { return CmdBroadcast }

// GlobalOps is the list of global operators, sent once after identify.
type GlobalOps struct {
	Ops []string `json:"ops"`
}

func (GlobalOps) ServerCommand() string { return CmdGlobalOps }

// GlobalPromote announces a character becoming a global operator.
type GlobalPromote struct {
	Character string `json:"character"`
}

func (GlobalPromote) ServerCommand() string { return CmdGlobalPromote }

// GlobalDemote announces a character losing global-operator status.
type GlobalDemote struct {
	Character string `json:"character"`
}

func (GlobalDemote) ServerCommand() string { return CmdGlobalDemote }

// Friends is the account's friend list, sent once after identify.
type Friends struct {
	Characters []string `json:"characters"`
}

func (Friends) ServerCommand() string { return CmdFriends }

// Ignore is both the initial ignore list (action init) and later
// confirmations of add/delete, plus delivery notices for ignored senders.
type Ignore struct {
	Action     string   `json:"action"`
	Character  string   `json:"character,omitempty"`
	Characters []string `json:"characters,omitempty"`
}

func (Ignore) ServerCommand() string { return CmdIgnore }

// ChannelSummary is one entry of the public-channel directory.
type ChannelSummary struct {
	Name       string      `json:"name"`
	Mode       ChannelMode `json:"mode"`
	Characters int         `json:"characters"`
}

// PublicChannels is the public-channel directory listing.
type PublicChannels struct {
	Channels []ChannelSummary `json:"channels"`
}

func (PublicChannels) ServerCommand() string { return CmdPublicChannels }

// RoomSummary is one entry of the open private-room directory.
type RoomSummary struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Characters int    `json:"characters"`
}

// OpenRooms is the open private-room directory listing.
type OpenRooms struct {
	Channels []RoomSummary `json:"channels"`
}

func (OpenRooms) ServerCommand() string { return CmdOpenRooms }

// Invite is an invitation into a private channel.
type Invite struct {
	Sender string `json:"sender"`
	Title  string `json:"title"`
	Name   string `json:"name"`
}

func (Invite) ServerCommand() string { return CmdInvite }

// Roll is the result of a dice roll or bottle spin. Dice rolls carry
// rolls/results/endresult; bottle spins carry target instead.
type Roll struct {
	Type      string   `json:"type"`
	Channel   string   `json:"channel,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Character string   `json:"character"`
	Message   string   `json:"message"`
	Rolls     []string `json:"rolls,omitempty"`
	Results   []int    `json:"results,omitempty"`
	EndResult int      `json:"endresult,omitempty"`
	Target    string   `json:"target,omitempty"`
}

func (Roll) ServerCommand() string { return CmdRoll }

// Bridge relays site events (notes, friend requests, bookmarks) into the
// chat connection.
type Bridge struct {
	Type      string `json:"type"`
	Character string `json:"character"`
}

func (Bridge) ServerCommand() string { return CmdBridge }

// StaffCall relays moderation alerts to operators.
type StaffCall struct {
	Action    string `json:"action"`
	CallID    int    `json:"callid,omitempty"`
	Character string `json:"character,omitempty"`
	Report    string `json:"report,omitempty"`
	LogID     int    `json:"logid,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Moderator string `json:"moderator,omitempty"`
}

func (StaffCall) ServerCommand() string { return CmdStaffCall }

// Uptime reports server statistics.
type Uptime struct {
	Time        int64  `json:"time"`
	StartTime   int64  `json:"starttime"`
	StartString string `json:"startstring"`
	Accepted    int64  `json:"accepted"`
	Channels    int    `json:"channels"`
	Users       int    `json:"users"`
	MaxUsers    int    `json:"maxusers"`
}

func (Uptime) ServerCommand() string { return CmdUptime }

// ProfileData is one staged PRD response: start, one frame per info line,
// then end.
type ProfileData struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
}

func (ProfileData) ServerCommand() string { return CmdProfileData }

// KinkData is one staged KID response: start, data items, then end.
type KinkData struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Key     int    `json:"key,omitempty"`
	Value   int    `json:"value,omitempty"`
}

func (KinkData) ServerCommand() string { return CmdKinkData }

// DecodeServer maps a parsed frame to its typed payload. Unknown command
// tokens return *UnknownCommandError; recognised commands with undecodable
// payloads return *MalformedFrameError. Both leave the connection intact.
func DecodeServer(f Frame) (ServerPayload, error) {
	var p ServerPayload
	switch f.Command {
	case CmdIdentified:
		p = &Identified{}
	case CmdError:
		p = &ServerError{}
	case CmdPing:
		p = &Ping{}
	case CmdHello:
		p = &Hello{}
	case CmdUserCount:
		p = &UserCount{}
	case CmdVariable:
		p = &Variable{}
	case CmdRoster:
		p = &Roster{}
	case CmdOnline:
		p = &Online{}
	case CmdOffline:
		p = &Offline{}
	case CmdStatus:
		p = &Status{}
	case CmdTyping:
		p = &Typing{}
	case CmdChannelJoin:
		p = &ChannelJoin{}
	case CmdChannelLeave:
		p = &ChannelLeave{}
	case CmdChannelRoster:
		p = &ChannelRoster{}
	case CmdChannelDesc:
		p = &ChannelDesc{}
	case CmdChannelMode:
		p = &ChannelModeChange{}
	case CmdChannelOwner:
		p = &ChannelOwner{}
	case CmdChannelOps:
		p = &ChannelOps{}
	case CmdChannelPromote:
		p = &ChannelPromote{}
	case CmdChannelDemote:
		p = &ChannelDemote{}
	case CmdChannelKick:
		p = &ChannelKick{}
	case CmdChannelBan:
		p = &ChannelBan{}
	case CmdChannelTimeout:
		p = &ChannelTimeout{}
	case CmdMessage:
		p = &Message{}
	case CmdAd:
		p = &Ad{}
	case CmdPrivateMessage:
		p = &PrivateMessage{}
	case CmdSystemMessage:
		p = &SystemMessage{}
	case CmdBroadcast:
		p = &Broadcast{}
	case CmdGlobalOps:
		p = &GlobalOps{}
	case CmdGlobalPromote:
		p = &GlobalPromote{}
	case CmdGlobalDemote:
		p = &GlobalDemote{}
	case CmdFriends:
		p = &Friends{}
	case CmdIgnore:
		p = &Ignore{}
	case CmdPublicChannels:
		p = &PublicChannels{}
	case CmdOpenRooms:
		p = &OpenRooms{}
	case CmdInvite:
		p = &Invite{}
	case CmdRoll:
		p = &Roll{}
	case CmdBridge:
		p = &Bridge{}
	case CmdStaffCall:
		p = &StaffCall{}
	case CmdUptime:
		p = &Uptime{}
	case CmdProfileData:
		p = &ProfileData{}
	case CmdKinkData:
		p = &KinkData{}
	default:
		return nil, &UnknownCommandError{Command: f.Command}
	}

	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, p); err != nil {
			return nil, &MalformedFrameError{Command: f.Command, Err: err}
		}
	}
	return p, nil
}
