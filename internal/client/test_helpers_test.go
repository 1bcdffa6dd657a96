package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"snowchat/internal/proto"
	"snowchat/internal/state"
	"snowchat/internal/transport"
)

var errConnClosed = errors.New("connection closed")

// fakeConn is a scripted server connection: tests push inbound frames into
// in and observe the client's writes on out.
type fakeConn struct {
	in  chan []byte
	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.in:
		return frame, nil
	case <-c.closed:
		return nil, errConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case c.out <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// serverSend delivers one frame as if the server had written it.
func (c *fakeConn) serverSend(t *testing.T, frame string) {
	t.Helper()

	select {
	case c.in <- []byte(frame):
	case <-time.After(2 * time.Second):
		t.Fatalf("client never read frame %q", frame)
	}
}

// expectWrite waits for the client's next write and asserts its command
// token, returning the full frame.
func (c *fakeConn) expectWrite(t *testing.T, command string) proto.Frame {
	t.Helper()

	select {
	case raw := <-c.out:
		frame, err := proto.ParseFrame(raw)
		if err != nil {
			t.Fatalf("client wrote unparseable frame %q: %v", raw, err)
		}
		if frame.Command != command {
			t.Fatalf("expected client to write %s, got %s (%s)", command, frame.Command, raw)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("client never wrote %s", command)
		return proto.Frame{}
	}
}

// fakeDialer hands out scripted connections in order and fails once the
// script runs dry.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dials >= len(d.conns) {
		return nil, errors.New("no more scripted connections")
	}
	conn := d.conns[d.dials]
	d.dials++
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeTickets is a TicketSource with a fixed answer.
type fakeTickets struct {
	mu          sync.Mutex
	ticket      string
	err         error
	invalidated int
}

func (f *fakeTickets) Ticket(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.ticket, nil
}

func (f *fakeTickets) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func (f *fakeTickets) invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

func testOptions(dialer *fakeDialer, tickets TicketSource) Options {
	return Options{
		ServerURL:     "wss://chat.example.test/chat2",
		Account:       "account",
		Character:     "Ariel",
		PingInterval:  time.Minute,
		ReconnectBase: 5 * time.Millisecond,
		ReconnectMax:  20 * time.Millisecond,
		MaxAttempts:   3,
		Dialer:        dialer,
		Tickets:       tickets,
	}
}

// waitForState polls until the store publishes the wanted connection
// state.
func waitForState(t *testing.T, st *state.Store, want state.ConnState) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st.ConnState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("store never reached state %v (currently %v)", want, st.ConnState())
}

// waitForErr waits for Run to return.
func waitForErr(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("Run never returned")
		return nil
	}
}
