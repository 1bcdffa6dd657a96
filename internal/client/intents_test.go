package client

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"snowchat/internal/outbound"
	"snowchat/internal/proto"
	"snowchat/internal/state"
)

func onlineClient(t *testing.T) *Client {
	t.Helper()

	logger := zerolog.Nop()
	c := New(&logger, testOptions(&fakeDialer{}, &fakeTickets{ticket: "tick"}))
	c.State().SetConnState(state.Online)
	return c
}

func joinTestChannel(c *Client, name string, mode proto.ChannelMode) {
	c.State().Apply(&proto.ChannelJoin{
		Channel:   name,
		Title:     name,
		Character: proto.CharacterIdentity{Identity: "Ariel"},
	})
	c.State().Apply(&proto.ChannelRoster{
		Channel: name,
		Mode:    mode,
		Users:   []proto.CharacterIdentity{{Identity: "Ariel"}},
	})
}

func TestSendMessage_RequiresConnection(t *testing.T) {
	logger := zerolog.Nop()
	c := New(&logger, testOptions(&fakeDialer{}, &fakeTickets{ticket: "tick"}))

	if err := c.SendMessage("Development", "hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendMessage_ValidatesBeforeEnqueue(t *testing.T) {
	c := onlineClient(t)
	joinTestChannel(c, "Development", proto.ModeChat)

	if err := c.SendMessage("Development", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := c.SendMessage("Elsewhere", "hi"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}

	// Nothing above must have reached the queue.
	if n := c.queue.Len(outbound.ClassChat); n != 0 {
		t.Fatalf("expected empty chat queue, got %d pending", n)
	}

	if err := c.SendMessage("Development", "hello there"); err != nil {
		t.Fatalf("valid send rejected: %v", err)
	}
}

func TestSendMessage_EnforcesServerLength(t *testing.T) {
	c := onlineClient(t)
	joinTestChannel(c, "Development", proto.ModeBoth)
	c.State().Apply(&proto.Variable{Variable: "chat_max", Value: []byte("5")})

	if err := c.SendMessage("Development", "this is too long"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if err := c.SendMessage("Development", "ok"); err != nil {
		t.Fatalf("short send rejected: %v", err)
	}
}

func TestModeValidation(t *testing.T) {
	c := onlineClient(t)
	joinTestChannel(c, "AdsOnly", proto.ModeAds)
	joinTestChannel(c, "ChatOnly", proto.ModeChat)

	if err := c.SendMessage("AdsOnly", "hi"); !errors.Is(err, ErrWrongChannelMode) {
		t.Fatalf("expected ErrWrongChannelMode for chat in ads channel, got %v", err)
	}
	if err := c.SendAd("ChatOnly", "ad text"); !errors.Is(err, ErrWrongChannelMode) {
		t.Fatalf("expected ErrWrongChannelMode for ad in chat channel, got %v", err)
	}
	if err := c.SendAd("AdsOnly", "ad text"); err != nil {
		t.Fatalf("ad in ads channel rejected: %v", err)
	}
}

func TestSetStatus_RejectsServerOwnedStatuses(t *testing.T) {
	c := onlineClient(t)

	if err := c.SetStatus(proto.StatusCrown, ""); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus for crown, got %v", err)
	}
	if err := c.SetStatus(proto.StatusIdle, ""); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus for idle, got %v", err)
	}
	if err := c.SetStatus(proto.StatusLooking, "open for rp"); err != nil {
		t.Fatalf("looking rejected: %v", err)
	}
}

func TestIgnore_AppliesLocallyBeforeConfirmation(t *testing.T) {
	c := onlineClient(t)

	if err := c.Ignore("Pest"); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if !c.State().IsIgnored("Pest") {
		t.Fatalf("ignore must apply locally at once")
	}
	if err := c.Unignore("Pest"); err != nil {
		t.Fatalf("unignore: %v", err)
	}
	if c.State().IsIgnored("Pest") {
		t.Fatalf("unignore must apply locally at once")
	}
}

func TestJoinChannel_TracksDesiredSetWhileOffline(t *testing.T) {
	logger := zerolog.Nop()
	c := New(&logger, testOptions(&fakeDialer{}, &fakeTickets{ticket: "tick"}))

	if err := c.JoinChannel("Development"); err != nil {
		t.Fatalf("join while offline: %v", err)
	}
	if err := c.JoinChannel(""); !errors.Is(err, ErrEmptyChannel) {
		t.Fatalf("expected ErrEmptyChannel, got %v", err)
	}

	got := c.DesiredChannels()
	if len(got) != 1 || got[0] != "Development" {
		t.Fatalf("expected desired set [Development], got %v", got)
	}

	if err := c.LeaveChannel("Development"); err != nil {
		t.Fatalf("leave while offline: %v", err)
	}
	if got := c.DesiredChannels(); len(got) != 0 {
		t.Fatalf("expected empty desired set, got %v", got)
	}
}

func TestSendMessage_QueuesDuringReconnect(t *testing.T) {
	c := onlineClient(t)
	joinTestChannel(c, "Development", proto.ModeBoth)
	if err := c.JoinChannel("Development"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// The transport died: the roster is wiped before the state flips.
	c.State().ResetSession()
	c.State().SetConnState(state.Reconnecting)

	if err := c.SendMessage("Development", "still here?"); err != nil {
		t.Fatalf("send during reconnect rejected: %v", err)
	}
	if n := c.queue.Len(outbound.ClassChat); n != 1 {
		t.Fatalf("expected message parked in the paused queue, got %d pending", n)
	}

	// Channels this session never held stay rejected.
	if err := c.SendMessage("Elsewhere", "hi"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
	if err := c.SendAd("Development", "an ad"); err != nil {
		t.Fatalf("ad during reconnect rejected: %v", err)
	}
}

func TestSendPrivate_RecordsOwnCopy(t *testing.T) {
	c := onlineClient(t)

	if err := c.SendPrivate("Bob", "hello"); err != nil {
		t.Fatalf("send private: %v", err)
	}
	conv, ok := c.State().Conversation("Bob")
	if !ok {
		t.Fatalf("conversation not created")
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Sender != "Ariel" {
		t.Fatalf("expected own message recorded, got %+v", conv.Messages)
	}
}
