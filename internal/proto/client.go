package proto

import (
	"encoding/json"
	"strconv"
)

// Client command tokens without an inbound counterpart.
const (
	CmdCreateChannel  = "CCR"
	CmdUnban          = "CUB"
	CmdSetVisibility  = "RST"
	CmdProfile        = "PRO"
	CmdKinks          = "KIN"
	CmdSearch         = "FKS"
	CmdAccountBan     = "ACB"
	CmdAccountUnban   = "UNB"
	CmdAccountTimeout = "TMO"
	CmdAltWatch       = "AWC"
	CmdKick           = "KIK"
	CmdReward         = "RWD"
	CmdCreateOfficial = "CRC"
	CmdDeleteChannel  = "KIC"
	CmdChannelBanlist = "CBL"
	CmdReport         = "SFC"
)

// ClientPayload is implemented by every outbound command.
type ClientPayload interface {
	// ClientCommand returns the three-letter wire token.
	ClientCommand() string
}

// EncodeClient renders an outbound command into wire form. Payloads that
// marshal to an empty object are sent as a bare token, matching the server's
// expectation for CHA, ORS, UPT and PIN.
func EncodeClient(p ClientPayload) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	f := Frame{Command: p.ClientCommand()}
	if string(body) != "{}" {
		f.Payload = body
	}
	return f.Encode()
}

// Identify is the IDN login handshake, sent once per connection before
// anything else. Method is always "ticket".
type Identify struct {
	Method    string `json:"method"`
	Account   string `json:"account"`
	Ticket    string `json:"ticket"`
	Character string `json:"character"`
	CName     string `json:"cname"`
	CVersion  string `json:"cversion"`
}

func (Identify) ClientCommand() string { return CmdIdentified }

// SendMessage posts a chat message to a channel.
type SendMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (SendMessage) ClientCommand() string { return CmdMessage }

// SendAd posts a roleplay ad to a channel.
type SendAd struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (SendAd) ClientCommand() string { return CmdAd }

// SendPrivate sends a private message to another character.
type SendPrivate struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func (SendPrivate) ClientCommand() string { return CmdPrivateMessage }

// JoinChannel asks to enter a channel by name.
type JoinChannel struct {
	Channel string `json:"channel"`
}

func (JoinChannel) ClientCommand() string { return CmdChannelJoin }

// LeaveChannel asks to exit a channel.
type LeaveChannel struct {
	Channel string `json:"channel"`
}

func (LeaveChannel) ClientCommand() string { return CmdChannelLeave }

// SetStatus updates this character's status and status message.
type SetStatus struct {
	Status    CharacterStatus `json:"status"`
	StatusMsg string          `json:"statusmsg"`
}

func (SetStatus) ClientCommand() string { return CmdStatus }

// SetTyping updates the typing indicator shown to a private conversation
// partner.
type SetTyping struct {
	Character string       `json:"character"`
	Status    TypingStatus `json:"status"`
}

func (SetTyping) ClientCommand() string { return CmdTyping }

// IgnoreAction adds, removes or lists ignored characters.
type IgnoreAction struct {
	Action    string `json:"action"`
	Character string `json:"character,omitempty"`
}

func (IgnoreAction) ClientCommand() string { return CmdIgnore }

// RequestChannels asks for the public-channel directory.
type RequestChannels struct{}

func (RequestChannels) ClientCommand() string { return CmdPublicChannels }

// RequestRooms asks for the open private-room directory.
type RequestRooms struct{}

func (RequestRooms) ClientCommand() string { return CmdOpenRooms }

// RequestUptime asks for server statistics.
type RequestUptime struct{}

func (RequestUptime) ClientCommand() string { return CmdUptime }

// CreateChannel opens a new private channel owned by this character.
type CreateChannel struct {
	Channel string `json:"channel"`
}

func (CreateChannel) ClientCommand() string { return CmdCreateChannel }

// SetDescription changes a channel's description. Requires channel op.
type SetDescription struct {
	Channel     string `json:"channel"`
	Description string `json:"description"`
}

func (SetDescription) ClientCommand() string { return CmdChannelDesc }

// InviteCharacter invites a character into a private channel.
type InviteCharacter struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (InviteCharacter) ClientCommand() string { return CmdInvite }

// KickCharacter removes a character from a channel. Requires channel op.
type KickCharacter struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (KickCharacter) ClientCommand() string { return CmdChannelKick }

// BanCharacter bans a character from a channel. Requires channel op.
type BanCharacter struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (BanCharacter) ClientCommand() string { return CmdChannelBan }

// UnbanCharacter lifts a channel ban. Requires channel op.
type UnbanCharacter struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (UnbanCharacter) ClientCommand() string { return CmdUnban }

// TimeoutCharacter bans a character from a channel for Length minutes.
// The server expects the length as a decimal string.
type TimeoutCharacter struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
	Length    int    `json:"-"`
}

func (TimeoutCharacter) ClientCommand() string { return CmdChannelTimeout }

// MarshalJSON serialises the length as a string, which is how the server
// parses it.
func (t TimeoutCharacter) MarshalJSON() ([]byte, error) {
	type wire struct {
		Channel   string `json:"channel"`
		Character string `json:"character"`
		Length    string `json:"length"`
	}
	return json.Marshal(wire{
		Channel:   t.Channel,
		Character: t.Character,
		Length:    strconv.Itoa(t.Length),
	})
}

// RequestOps asks for a channel's operator list.
type RequestOps struct {
	Channel string `json:"channel"`
}

func (RequestOps) ClientCommand() string { return CmdChannelOps }

// PromoteOp grants channel-operator rights. Requires channel owner.
type PromoteOp struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (PromoteOp) ClientCommand() string { return CmdChannelPromote }

// DemoteOp revokes channel-operator rights. Requires channel owner.
type DemoteOp struct {
	Channel   string `json:"channel"`
	Character string `json:"character"`
}

func (DemoteOp) ClientCommand() string { return CmdChannelDemote }

// SetMode switches a channel between chat, ads and both. Requires channel
// owner.
type SetMode struct {
	Channel string      `json:"channel"`
	Mode    ChannelMode `json:"mode"`
}

func (SetMode) ClientCommand() string { return CmdChannelMode }

// SetVisibility toggles a private channel between public and closed.
// Status is "public" or "private".
type SetVisibility struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

func (SetVisibility) ClientCommand() string { return CmdSetVisibility }

// RollDice rolls dice or spins the bottle in a channel or private
// conversation. Dice is e.g. "2d10+1d20" or "bottle".
type RollDice struct {
	Channel   string `json:"channel,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Dice      string `json:"dice"`
}

func (RollDice) ClientCommand() string { return CmdRoll }

// RequestProfile asks for a character's profile, answered by staged PRD
// frames.
type RequestProfile struct {
	Character string `json:"character"`
}

func (RequestProfile) ClientCommand() string { return CmdProfile }

// RequestKinks asks for a character's kinks, answered by staged KID
// frames.
type RequestKinks struct {
	Character string `json:"character"`
}

func (RequestKinks) ClientCommand() string { return CmdKinks }

// Search runs a kink/gender character search.
type Search struct {
	Kinks        []int    `json:"kinks"`
	Genders      []string `json:"genders,omitempty"`
	Orientations []string `json:"orientations,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	Furryprefs   []string `json:"furryprefs,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func (Search) ClientCommand() string { return CmdSearch }

// Report files a moderation report against a character.
type Report struct {
	Action    string `json:"action"`
	Report    string `json:"report"`
	Character string `json:"character"`
}

func (Report) ClientCommand() string { return CmdReport }

// Admin commands. All require global-operator permissions; the server
// answers misuse with ERR 38 (insufficient permissions).

// AccountBan bans a character's account from the server.
type AccountBan struct {
	Character string `json:"character"`
}

func (AccountBan) ClientCommand() string { return CmdAccountBan }

// AccountUnban lifts an account ban.
type AccountUnban struct {
	Character string `json:"character"`
}

func (AccountUnban) ClientCommand() string { return CmdAccountUnban }

// AccountTimeout bans a character's account for Time minutes.
type AccountTimeout struct {
	Character string `json:"character"`
	Time      int    `json:"time"`
	Reason    string `json:"reason"`
}

func (AccountTimeout) ClientCommand() string { return CmdAccountTimeout }

// AltWatch lists a character's alts.
type AltWatch struct {
	Character string `json:"character"`
}

func (AltWatch) ClientCommand() string { return CmdAltWatch }

// GlobalKick disconnects a character from the server.
type GlobalKick struct {
	Character string `json:"character"`
}

func (GlobalKick) ClientCommand() string { return CmdKick }

// GlobalPromoteOp makes a character a global operator.
type GlobalPromoteOp struct {
	Character string `json:"character"`
}

func (GlobalPromoteOp) ClientCommand() string { return CmdGlobalPromote }

// GlobalDemoteOp removes a character's global-operator status.
type GlobalDemoteOp struct {
	Character string `json:"character"`
}

func (GlobalDemoteOp) ClientCommand() string { return CmdGlobalDemote }

// SendBroadcast shows a message to every connected client.
type SendBroadcast struct {
	Message string `json:"message"`
}

func (SendBroadcast) ClientCommand() string { return CmdBroadcast }

// Reward flags a character with a special status.
type Reward struct {
	Character string `json:"character"`
}

func (Reward) ClientCommand() string { return CmdReward }

// CreateOfficial opens a new official public channel.
type CreateOfficial struct {
	Channel string `json:"channel"`
}

func (CreateOfficial) ClientCommand() string { return CmdCreateOfficial }

// DeleteChannel removes a channel entirely.
type DeleteChannel struct {
	Channel string `json:"channel"`
}

func (DeleteChannel) ClientCommand() string { return CmdDeleteChannel }

// RequestBanlist asks for a channel's ban list. Requires channel op.
type RequestBanlist struct {
	Channel string `json:"channel"`
}

func (RequestBanlist) ClientCommand() string { return CmdChannelBanlist }
