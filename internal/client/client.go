// Package client is the protocol engine: it owns the connection
// lifecycle, pumps inbound frames into the state store, and turns user
// intents into validated, rate-limited outbound commands. One engine
// serves one logged-in character.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snowchat/internal/flist"
	"snowchat/internal/outbound"
	"snowchat/internal/proto"
	"snowchat/internal/state"
	"snowchat/internal/store"
	"snowchat/internal/transport"
)

const (
	// DefaultClientName and DefaultClientVersion identify this client in
	// the IDN handshake.
	DefaultClientName    = "Snowchat"
	DefaultClientVersion = "0.4.0"

	// DefaultPingInterval paces outbound heartbeats; the read deadline is
	// three times this.
	DefaultPingInterval = 30 * time.Second

	dialTimeout    = 15 * time.Second
	writeTimeout   = 10 * time.Second
	archiveBuffer  = 256
	archiveTimeout = 5 * time.Second
)

// TicketSource supplies chat credentials. *flist.Client implements it;
// tests substitute a fake.
type TicketSource interface {
	// Ticket returns a ticket valid right now.
	Ticket(ctx context.Context) (string, error)
	// Invalidate discards the cached ticket after the chat server
	// rejects it.
	Invalidate()
}

// Options wire the engine to its collaborators. Zero durations and counts
// select defaults.
type Options struct {
	ServerURL string
	Account   string
	Character string

	ClientName    string
	ClientVersion string

	PingInterval  time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	MaxAttempts   int
	QueueCapacity int
	HistoryLimit  int

	Dialer  transport.Dialer
	Tickets TicketSource
	// Site drives server-confirmed bookmark and friend mutations over
	// the JSON endpoints; nil disables them.
	Site SiteAPI
	// Archive is the optional chat-log store; nil disables archiving.
	Archive store.LogStore
}

func (o *Options) fillDefaults() {
	if o.ClientName == "" {
		o.ClientName = DefaultClientName
	}
	if o.ClientVersion == "" {
		o.ClientVersion = DefaultClientVersion
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 60 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.Dialer == nil {
		o.Dialer = transport.WSDialer{}
	}
}

// Client is the engine. Build with New, drive with Run, issue intents
// from any goroutine.
type Client struct {
	log   *zerolog.Logger
	opts  Options
	store *state.Store
	queue *outbound.Queue

	connMu sync.Mutex
	conn   transport.Conn

	writeMu   sync.Mutex
	lastWrite time.Time

	desiredMu sync.Mutex
	desired   map[string]struct{}

	// sawOnline is set by the session's read goroutine and read by Run
	// after the session ends; both run on the same goroutine.
	sawOnline bool

	archiveCh chan *store.Record
}

// New builds an engine. The state store it creates is the one source of
// truth for the UI; read it via State.
func New(logger *zerolog.Logger, opts Options) *Client {
	opts.fillDefaults()

	c := &Client{
		log:       logger,
		opts:      opts,
		store:     state.New(opts.HistoryLimit),
		desired:   make(map[string]struct{}),
		archiveCh: make(chan *store.Record, archiveBuffer),
	}
	c.queue = outbound.New(logger, c.transmit, outbound.Options{
		Capacity: opts.QueueCapacity,
		OnDrop:   c.reportDrop,
	})
	c.store.SetSelf(opts.Account, opts.Character)
	return c
}

// State exposes the session store for snapshots and subscriptions.
func (c *Client) State() *state.Store {
	return c.store
}

// Run drives the connection until ctx ends or the session fails for good.
// It owns the reconnect policy: transport failures back off and retry,
// authentication failures and fatal server errors return immediately.
func (c *Client) Run(ctx context.Context) error {
	c.queue.Pause()

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		c.queue.Run(queueCtx)
	}()
	go func() {
		defer bg.Done()
		c.archiveLoop(queueCtx)
	}()
	// Shutdown order: stop the background drains, wait them out, then
	// report whatever never went out.
	defer c.drainPending()
	defer bg.Wait()
	defer cancelQueue()

	attempt := 0
	for {
		c.store.SetConnState(state.Connecting)
		err := c.runSession(ctx)

		if ctx.Err() != nil {
			c.store.SetConnState(state.Disconnected)
			return ctx.Err()
		}
		if c.sawOnline {
			attempt = 0
			c.sawOnline = false
		}

		var fatal *FatalError
		switch {
		case errors.As(err, &fatal), errors.Is(err, ErrAuthFailed):
			c.log.Error().Err(err).Msg("session ended fatally")
			c.store.SetConnState(state.Fatal)
			return err
		case errors.Is(err, errStaleTicket):
			c.log.Warn().Msg("identification rejected, retrying with a fresh ticket")
		case transport.IsNormalClose(err):
			c.log.Info().Msg("server closed the connection")
		default:
			c.log.Warn().Err(err).Msg("session lost")
		}

		attempt++
		if attempt > c.opts.MaxAttempts {
			c.store.SetConnState(state.Fatal)
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, c.opts.MaxAttempts, err)
		}

		c.queue.Pause()
		c.store.ResetSession()
		c.store.SetConnState(state.Reconnecting)

		delay := jitterDelay(backoffDelay(c.opts.ReconnectBase, c.opts.ReconnectMax, attempt-1))
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		select {
		case <-ctx.Done():
			c.store.SetConnState(state.Disconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runSession performs one connect-identify-pump cycle and returns the
// error that ended it.
func (c *Client) runSession(ctx context.Context) error {
	ticket, err := c.opts.Tickets.Ticket(ctx)
	if err != nil {
		var apiErr *flist.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return fmt.Errorf("fetch ticket: %w", err)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	conn, err := c.opts.Dialer.Dial(dialCtx, c.opts.ServerURL)
	cancelDial()
	if err != nil {
		return fmt.Errorf("dial chat server: %w", err)
	}

	session := uuid.NewString()
	c.log.Debug().Str("session", session).Str("url", c.opts.ServerURL).Msg("connected")

	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close()
	}()

	c.store.SetConnState(state.Authenticating)
	if err := c.send(proto.Identify{
		Method:    "ticket",
		Account:   c.opts.Account,
		Ticket:    ticket,
		Character: c.opts.Character,
		CName:     c.opts.ClientName,
		CVersion:  c.opts.ClientVersion,
	}); err != nil {
		return fmt.Errorf("send identification: %w", err)
	}

	sessCtx, cancelSess := context.WithCancel(ctx)
	defer cancelSess()
	go c.heartbeat(sessCtx)

	for {
		readCtx, cancelRead := context.WithTimeout(sessCtx, 3*c.opts.PingInterval)
		raw, err := conn.ReadFrame(readCtx)
		cancelRead()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if err := c.dispatch(raw); err != nil {
			return err
		}
	}
}

// dispatch decodes one inbound frame and routes it. A non-nil return ends
// the session; decode failures never do.
func (c *Client) dispatch(raw []byte) error {
	frame, err := proto.ParseFrame(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("discarding unparseable frame")
		return nil
	}
	payload, err := proto.DecodeServer(frame)
	if err != nil {
		// Fails closed: unknown or malformed frames are logged and
		// dropped, the connection stays up.
		c.log.Warn().Err(err).Str("command", frame.Command).Msg("discarding frame")
		return nil
	}

	switch v := payload.(type) {
	case *proto.Ping:
		if err := c.send(proto.Ping{}); err != nil {
			return fmt.Errorf("answer ping: %w", err)
		}
	case *proto.Hello:
		c.log.Info().Str("message", v.Message).Msg("server hello")
	case *proto.Identified:
		c.store.Apply(v)
		c.onOnline()
	case *proto.ServerError:
		return c.handleServerError(v)
	case *proto.Variable:
		c.retune(v)
		c.store.Apply(v)
	case *proto.ProfileData:
		c.log.Debug().Str("type", v.Type).Str("key", v.Key).Msg("profile data")
	case *proto.KinkData:
		c.log.Debug().Str("type", v.Type).Int("key", v.Key).Msg("kink data")
	case *proto.StaffCall:
		c.store.RecordNotice(v.Moderator, fmt.Sprintf("staff alert (%s): %s", v.Action, v.Report))
	default:
		c.store.Apply(payload)
		c.archiveInbound(payload)
	}
	return nil
}

// handleServerError sorts numbered server errors: fatal numbers end the
// session for good, an identification rejection triggers one retry with a
// fresh ticket, everything else is surfaced as a notice.
func (c *Client) handleServerError(v *proto.ServerError) error {
	if isFatalNumber(v.Number) {
		return &FatalError{Number: v.Number, Message: v.Message}
	}
	// ERR 4 is "identification failed": the ticket likely expired
	// between fetch and use.
	if v.Number == 4 {
		c.opts.Tickets.Invalidate()
		return errStaleTicket
	}
	c.log.Warn().Int("number", v.Number).Str("message", v.Message).Msg("server error")
	c.store.RecordNotice("", fmt.Sprintf("error %d: %s", v.Number, v.Message))
	return nil
}

// onOnline runs once per session when the server acknowledges IDN: the
// queue reopens and the desired channel set is re-derived into joins
// instead of replaying whatever was pending before the drop.
func (c *Client) onOnline() {
	c.sawOnline = true
	c.store.SetConnState(state.Online)
	c.queue.Resume()

	if bm, ok := c.opts.Tickets.(interface{ Bookmarks() []string }); ok {
		c.store.SetBookmarks(bm.Bookmarks())
	}

	c.desiredMu.Lock()
	channels := make([]string, 0, len(c.desired))
	for name := range c.desired {
		channels = append(channels, name)
	}
	c.desiredMu.Unlock()

	for _, name := range channels {
		if err := c.queue.Enqueue(proto.JoinChannel{Channel: name}); err != nil {
			c.log.Warn().Err(err).Str("channel", name).Msg("rejoin failed to enqueue")
		}
	}
}

func (c *Client) retune(v *proto.Variable) {
	switch v.Variable {
	case "msg_flood":
		if f, err := v.Float(); err == nil {
			c.queue.RetuneMessages(f)
		}
	case "lfrp_flood":
		if f, err := v.Float(); err == nil {
			c.queue.RetuneAds(f)
		}
	}
}

func (c *Client) setConn(conn transport.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// send encodes and writes a frame immediately, bypassing the queue. Used
// for IDN, PIN and the queue's own transmit path.
func (c *Client) send(p proto.ClientPayload) error {
	frame, err := proto.EncodeClient(p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.ClientCommand(), err)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteFrame(ctx, frame); err != nil {
		return err
	}
	c.lastWrite = time.Now()
	return nil
}

// transmit is the queue's SendFunc.
func (c *Client) transmit(p proto.ClientPayload) error {
	return c.send(p)
}

// heartbeat sends a bare PIN whenever nothing has been written for a full
// ping interval. Every successful write pushes the next heartbeat out.
func (c *Client) heartbeat(ctx context.Context) {
	interval := c.opts.PingInterval
	for {
		c.writeMu.Lock()
		idle := time.Since(c.lastWrite)
		c.writeMu.Unlock()

		wait := interval - idle
		if wait <= 0 {
			if err := c.send(proto.Ping{}); err != nil {
				return
			}
			wait = interval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// reportDrop tells the submitter side that sustained throttling evicted a
// pending command.
func (c *Client) reportDrop(class outbound.Class, p proto.ClientPayload) {
	c.store.RecordNotice("", fmt.Sprintf("dropped: rate limit overflow (%s %s)", class, p.ClientCommand()))
}

// drainPending reports every queued-but-unsent command at shutdown,
// through the same notice path overflow drops take. The final snapshot a
// UI renders names every command that never went out.
func (c *Client) drainPending() {
	c.queue.Drain(func(class outbound.Class, p proto.ClientPayload) {
		c.store.RecordNotice("", fmt.Sprintf("dropped: shutdown before send (%s %s)", class, p.ClientCommand()))
		c.log.Info().
			Stringer("class", class).
			Str("command", p.ClientCommand()).
			Msg("discarding unsent command at shutdown")
	})
}

// archiveInbound tees delivered messages into the chat-log archive.
func (c *Client) archiveInbound(p proto.ServerPayload) {
	if c.opts.Archive == nil {
		return
	}
	switch v := p.(type) {
	case *proto.Message:
		c.archive(store.ScopeChannel, v.Channel, v.Character, "chat", v.Message)
	case *proto.Ad:
		c.archive(store.ScopeChannel, v.Channel, v.Character, "ad", v.Message)
	case *proto.PrivateMessage:
		c.archive(store.ScopePrivate, v.Character, v.Character, "private", v.Message)
	case *proto.SystemMessage:
		if v.Channel == "" {
			c.archive(store.ScopeConsole, "", "", "system", v.Message)
		} else {
			c.archive(store.ScopeChannel, v.Channel, "", "system", v.Message)
		}
	case *proto.Broadcast:
		c.archive(store.ScopeConsole, "", v.Character, "broadcast", v.Message)
	case *proto.Roll:
		if v.Channel != "" {
			c.archive(store.ScopeChannel, v.Channel, v.Character, "roll", v.Message)
		} else {
			c.archive(store.ScopePrivate, v.Character, v.Character, "roll", v.Message)
		}
	}
}

// archive hands one record to the background writer. A full buffer drops
// the record with a warning; the protocol path never waits on storage.
func (c *Client) archive(scope store.Scope, key, sender, kind, body string) {
	rec := &store.Record{
		ID:     uuid.NewString(),
		Scope:  scope,
		Key:    key,
		Sender: sender,
		Kind:   kind,
		Body:   body,
		SentAt: time.Now(),
	}
	select {
	case c.archiveCh <- rec:
	default:
		c.log.Warn().Str("scope", string(scope)).Str("key", key).Msg("archive buffer full, dropping record")
	}
}

func (c *Client) archiveLoop(ctx context.Context) {
	if c.opts.Archive == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-c.archiveCh:
			writeCtx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
			if err := c.opts.Archive.Append(writeCtx, rec); err != nil {
				c.log.Warn().Err(err).Msg("archive append failed")
			}
			cancel()
		}
	}
}
