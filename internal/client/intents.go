package client

import (
	"strings"

	"snowchat/internal/proto"
	"snowchat/internal/state"
	"snowchat/internal/store"
)

// Intents are validated here, before anything touches the network:
// precondition failures return synchronously and nothing is enqueued.
// While the engine is reconnecting, accepted commands accumulate in the
// paused queue and go out once the session is back.

// settableStatuses are the statuses a client may set on itself. The
// server assigns idle and crown.
var settableStatuses = map[proto.CharacterStatus]struct{}{
	proto.StatusOnline:  {},
	proto.StatusLooking: {},
	proto.StatusAway:    {},
	proto.StatusBusy:    {},
	proto.StatusDND:     {},
}

// ensureSendable rejects intents when no session exists to carry them.
func (c *Client) ensureSendable() error {
	switch c.store.ConnState() {
	case state.Online, state.Authenticating, state.Reconnecting:
		return nil
	default:
		return ErrNotConnected
	}
}

// channelForSend resolves the joined-channel precondition. During a
// reconnect the store has been reset, so the desired-channel set stands in
// for it; the returned info is nil in that case and mode checks are
// skipped until the roster is back.
func (c *Client) channelForSend(channel string) (*state.ChannelInfo, error) {
	if ch, ok := c.store.Channel(channel); ok {
		return ch, nil
	}
	if c.store.ConnState() == state.Reconnecting && c.isDesired(channel) {
		return nil, nil
	}
	return nil, ErrNotJoined
}

func (c *Client) isDesired(name string) bool {
	c.desiredMu.Lock()
	defer c.desiredMu.Unlock()

	_, ok := c.desired[name]
	return ok
}

func checkText(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	// A zero limit means the server has not announced one yet.
	if max > 0 && len(text) > max {
		return ErrMessageTooLong
	}
	return nil
}

// SendMessage posts a chat message to a joined channel.
func (c *Client) SendMessage(channel, text string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	if err := checkText(text, c.store.Vars().ChatMax); err != nil {
		return err
	}
	ch, err := c.channelForSend(channel)
	if err != nil {
		return err
	}
	if ch != nil && ch.Mode == proto.ModeAds {
		return ErrWrongChannelMode
	}

	if err := c.queue.Enqueue(proto.SendMessage{Channel: channel, Message: text}); err != nil {
		return err
	}
	c.store.RecordSentMessage(channel, text, false)
	if c.opts.Archive != nil {
		c.archive(store.ScopeChannel, channel, c.store.Self().Character, "chat", text)
	}
	return nil
}

// SendAd posts a roleplay ad to a joined channel.
func (c *Client) SendAd(channel, text string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	if err := checkText(text, c.store.Vars().AdMax); err != nil {
		return err
	}
	ch, err := c.channelForSend(channel)
	if err != nil {
		return err
	}
	if ch != nil && ch.Mode == proto.ModeChat {
		return ErrWrongChannelMode
	}

	if err := c.queue.Enqueue(proto.SendAd{Channel: channel, Message: text}); err != nil {
		return err
	}
	c.store.RecordSentMessage(channel, text, true)
	if c.opts.Archive != nil {
		c.archive(store.ScopeChannel, channel, c.store.Self().Character, "ad", text)
	}
	return nil
}

// SendPrivate sends a private message to another character.
func (c *Client) SendPrivate(recipient, text string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	if err := checkText(text, c.store.Vars().PrivMax); err != nil {
		return err
	}

	if err := c.queue.Enqueue(proto.SendPrivate{Recipient: recipient, Message: text}); err != nil {
		return err
	}
	c.store.RecordSentPrivate(recipient, text)
	if c.opts.Archive != nil {
		c.archive(store.ScopePrivate, recipient, c.store.Self().Character, "private", text)
	}
	return nil
}

// JoinChannel adds a channel to the desired set and, when online, asks the
// server for it. The desired set is what reconnects re-derive joins from.
func (c *Client) JoinChannel(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyChannel
	}

	c.desiredMu.Lock()
	c.desired[name] = struct{}{}
	c.desiredMu.Unlock()

	if c.store.ConnState() != state.Online {
		return nil
	}
	return c.queue.Enqueue(proto.JoinChannel{Channel: name})
}

// LeaveChannel removes a channel from the desired set and, when online,
// tells the server.
func (c *Client) LeaveChannel(name string) error {
	c.desiredMu.Lock()
	delete(c.desired, name)
	c.desiredMu.Unlock()

	if c.store.ConnState() != state.Online {
		return nil
	}
	return c.queue.Enqueue(proto.LeaveChannel{Channel: name})
}

// DesiredChannels lists the channels this client wants joined, whether or
// not a session currently exists.
func (c *Client) DesiredChannels() []string {
	c.desiredMu.Lock()
	defer c.desiredMu.Unlock()

	out := make([]string, 0, len(c.desired))
	for name := range c.desired {
		out = append(out, name)
	}
	return out
}

// SetStatus updates this character's status and status message.
func (c *Client) SetStatus(status proto.CharacterStatus, message string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	if _, ok := settableStatuses[status]; !ok {
		return ErrBadStatus
	}
	return c.queue.Enqueue(proto.SetStatus{Status: status, StatusMsg: message})
}

// SetTyping updates the typing indicator shown to a conversation partner.
func (c *Client) SetTyping(partner string, status proto.TypingStatus) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	return c.queue.Enqueue(proto.SetTyping{Character: partner, Status: status})
}

// Ignore silences a character. The ignore list is client-authoritative:
// it applies locally at once and the server is merely informed.
func (c *Client) Ignore(character string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	c.store.SetIgnored(character, true)
	return c.queue.Enqueue(proto.IgnoreAction{Action: "add", Character: character})
}

// Unignore reverses Ignore.
func (c *Client) Unignore(character string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	c.store.SetIgnored(character, false)
	return c.queue.Enqueue(proto.IgnoreAction{Action: "delete", Character: character})
}

// RequestChannelList asks for the public channel directory.
func (c *Client) RequestChannelList() error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	return c.queue.Enqueue(proto.RequestChannels{})
}

// RequestRoomList asks for the open private-room directory.
func (c *Client) RequestRoomList() error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	return c.queue.Enqueue(proto.RequestRooms{})
}

// RequestUptime asks for server statistics.
func (c *Client) RequestUptime() error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	return c.queue.Enqueue(proto.RequestUptime{})
}

// RollDice rolls dice in a channel or a private conversation. Exactly one
// of channel and recipient should be set.
func (c *Client) RollDice(channel, recipient, dice string) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	if channel != "" {
		if _, ok := c.store.Channel(channel); !ok {
			return ErrNotJoined
		}
	}
	return c.queue.Enqueue(proto.RollDice{Channel: channel, Recipient: recipient, Dice: dice})
}

// Command enqueues any outbound payload after the connection check. It is
// the passthrough for moderation and admin commands that need no local
// validation; regular traffic should use the typed intents above.
func (c *Client) Command(p proto.ClientPayload) error {
	if err := c.ensureSendable(); err != nil {
		return err
	}
	return c.queue.Enqueue(p)
}
