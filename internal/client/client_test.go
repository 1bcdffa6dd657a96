package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"snowchat/internal/flist"
	"snowchat/internal/outbound"
	"snowchat/internal/proto"
	"snowchat/internal/state"
)

func startEngine(t *testing.T, dialer *fakeDialer, tickets TicketSource) (*Client, context.CancelFunc, <-chan error) {
	t.Helper()

	logger := zerolog.Nop()
	c := New(&logger, testOptions(dialer, tickets))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	return c, cancel, errCh
}

// identify walks one connection through the handshake: the client writes
// IDN and the server acknowledges it.
func identify(t *testing.T, conn *fakeConn) {
	t.Helper()

	frame := conn.expectWrite(t, "IDN")
	var idn proto.Identify
	if err := json.Unmarshal(frame.Payload, &idn); err != nil {
		t.Fatalf("decode IDN payload: %v", err)
	}
	if idn.Method != "ticket" || idn.Character != "Ariel" {
		t.Fatalf("unexpected IDN payload: %+v", idn)
	}
	conn.serverSend(t, `IDN {"character":"Ariel"}`)
}

func TestRun_AuthFailureIsFatalWithoutDialing(t *testing.T) {
	dialer := &fakeDialer{}
	tickets := &fakeTickets{err: &flist.APIError{Endpoint: "getApiTicket.php", Message: "Invalid username or password."}}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	err := waitForErr(t, errCh)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if got := c.State().ConnState(); got != state.Fatal {
		t.Fatalf("expected Fatal state, got %v", got)
	}
	if dialer.dialCount() != 0 {
		t.Fatalf("expected no dial after credential rejection, got %d", dialer.dialCount())
	}
}

func TestRun_FatalServerErrorNeverReconnects(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	conn.expectWrite(t, "IDN")
	conn.serverSend(t, `ERR {"number":9,"message":"Banned."}`)

	err := waitForErr(t, errCh)
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Number != 9 {
		t.Fatalf("expected FatalError 9, got %v", err)
	}
	if got := c.State().ConnState(); got != state.Fatal {
		t.Fatalf("expected Fatal state, got %v", got)
	}
	if dialer.dialCount() != 1 {
		t.Fatalf("expected exactly one dial, got %d", dialer.dialCount())
	}
}

func TestRun_StaleTicketRefreshesAndRetries(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn1, conn2}}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	conn1.expectWrite(t, "IDN")
	conn1.serverSend(t, `ERR {"number":4,"message":"Identification failed."}`)

	identify(t, conn2)
	waitForState(t, c.State(), state.Online)

	if tickets.invalidations() != 1 {
		t.Fatalf("expected one ticket invalidation, got %d", tickets.invalidations())
	}

	cancel()
	if err := waitForErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_AnswersServerPing(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	identify(t, conn)
	waitForState(t, c.State(), state.Online)

	conn.serverSend(t, "PIN")
	pin := conn.expectWrite(t, "PIN")
	if len(pin.Payload) != 0 {
		t.Fatalf("PIN reply must be a bare token, got payload %s", pin.Payload)
	}

	cancel()
	waitForErr(t, errCh)
}

func TestRun_TransportDropRederivesJoins(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn1, conn2}}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	identify(t, conn1)
	waitForState(t, c.State(), state.Online)

	if err := c.JoinChannel("Development"); err != nil {
		t.Fatalf("join: %v", err)
	}
	conn1.expectWrite(t, "JCH")
	conn1.serverSend(t, `JCH {"channel":"Development","title":"Development","character":{"identity":"Ariel"}}`)

	// Kill the transport out from under the session.
	conn1.Close()
	waitForState(t, c.State(), state.Reconnecting)

	// The new session identifies and re-derives the join from the
	// desired set rather than replaying buffered frames.
	identify(t, conn2)
	waitForState(t, c.State(), state.Online)
	conn2.expectWrite(t, "JCH")

	cancel()
	if err := waitForErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("expected two dials, got %d", dialer.dialCount())
	}
}

func TestRun_GivesUpAfterMaxAttempts(t *testing.T) {
	// Every scripted connection is already dead, so each dial fails at
	// the identification write.
	conns := make([]*fakeConn, 4)
	for i := range conns {
		conns[i] = newFakeConn()
		conns[i].Close()
	}
	dialer := &fakeDialer{conns: conns}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	err := waitForErr(t, errCh)
	if !errors.Is(err, ErrMaxAttempts) {
		t.Fatalf("expected ErrMaxAttempts, got %v", err)
	}
	if got := c.State().ConnState(); got != state.Fatal {
		t.Fatalf("expected Fatal state, got %v", got)
	}
	// MaxAttempts of 3 means the first dial plus three retries.
	if dialer.dialCount() != 4 {
		t.Fatalf("expected four dials, got %d", dialer.dialCount())
	}
}

func TestRun_RetunesFloodLimitsFromVariables(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	tickets := &fakeTickets{ticket: "tick"}

	c, cancel, errCh := startEngine(t, dialer, tickets)
	defer cancel()

	identify(t, conn)
	waitForState(t, c.State(), state.Online)

	conn.serverSend(t, `VAR {"variable":"msg_flood","value":0.001}`)
	conn.serverSend(t, `VAR {"variable":"chat_max","value":4096}`)
	conn.serverSend(t, `JCH {"channel":"Development","title":"Development","character":{"identity":"Ariel"}}`)

	// A burst of messages clears quickly under the retuned limiter.
	deadline := time.Now().Add(2 * time.Second)
	for c.State().Vars().ChatMax != 4096 {
		if time.Now().After(deadline) {
			t.Fatalf("chat_max never applied")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		if err := c.SendMessage("Development", "hello"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		conn.expectWrite(t, "MSG")
	}

	cancel()
	waitForErr(t, errCh)
}

func TestHandleServerError_NonFatalBecomesNotice(t *testing.T) {
	logger := zerolog.Nop()
	c := New(&logger, testOptions(&fakeDialer{}, &fakeTickets{ticket: "tick"}))

	if err := c.handleServerError(&proto.ServerError{Number: 5, Message: "slow down"}); err != nil {
		t.Fatalf("non-fatal error should not end the session: %v", err)
	}
	snap := c.State().Snapshot()
	if len(snap.Notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(snap.Notices))
	}
}

func TestDrainPending_SurfacesUnsentAsNotices(t *testing.T) {
	c := onlineClient(t)
	joinTestChannel(c, "Development", proto.ModeBoth)

	if err := c.SendMessage("Development", "never sent"); err != nil {
		t.Fatalf("send: %v", err)
	}

	c.drainPending()

	// The final snapshot names the command that never went out.
	snap := c.State().Snapshot()
	if len(snap.Notices) != 1 {
		t.Fatalf("expected one drop notice, got %d", len(snap.Notices))
	}
	if !strings.Contains(snap.Notices[0].Text, "MSG") {
		t.Fatalf("expected the dropped command named, got %q", snap.Notices[0].Text)
	}
	if n := c.queue.Len(outbound.ClassChat); n != 0 {
		t.Fatalf("expected queue emptied, got %d pending", n)
	}
}
