// Package outbound paces commands toward the server. Each traffic class
// has its own token bucket and bounded FIFO; a full FIFO evicts its oldest
// entry so recent intent always wins. The heartbeat and login commands
// never pass through here.
package outbound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"snowchat/internal/proto"
)

// Class is a rate-limit bucket.
type Class int

const (
	// ClassChat paces channel messages (MSG).
	ClassChat Class = iota
	// ClassPrivate paces private messages (PRI).
	ClassPrivate
	// ClassAds paces roleplay ads (LRP).
	ClassAds
	// ClassControl paces everything else: joins, status, directories.
	ClassControl

	numClasses
)

func (c Class) String() string {
	switch c {
	case ClassChat:
		return "chat"
	case ClassPrivate:
		return "private"
	case ClassAds:
		return "ads"
	case ClassControl:
		return "control"
	default:
		return "unknown"
	}
}

// Classify maps a payload to its bucket.
func Classify(p proto.ClientPayload) Class {
	switch p.(type) {
	case proto.SendMessage, *proto.SendMessage:
		return ClassChat
	case proto.SendPrivate, *proto.SendPrivate:
		return ClassPrivate
	case proto.SendAd, *proto.SendAd:
		return ClassAds
	default:
		return ClassControl
	}
}

// ErrBypassCommand is returned for IDN and PIN, which must be written to
// the connection directly: a delayed heartbeat is a dead connection and a
// delayed login never completes.
var ErrBypassCommand = errors.New("command bypasses the outbound queue")

// Conservative pacing until the server announces its flood intervals.
const (
	defaultMessageEvery = time.Second
	defaultAdEvery      = 10 * time.Second
	defaultControlRate  = rate.Limit(2)
	controlBurst        = 4
)

// DefaultCapacity bounds each class's pending list when Options.Capacity
// is non-positive.
const DefaultCapacity = 128

// sendRetryDelay backs a failed send off before the requeued payload is
// tried again, covering the window before Pause lands.
const sendRetryDelay = 100 * time.Millisecond

// SendFunc hands a paced payload to the connection layer.
type SendFunc func(p proto.ClientPayload) error

// DropFunc is invoked for every evicted payload, from the enqueueing
// goroutine.
type DropFunc func(class Class, p proto.ClientPayload)

// Options tune the queue.
type Options struct {
	Capacity int
	OnDrop   DropFunc
}

type classQueue struct {
	class   Class
	limiter *rate.Limiter

	mu    sync.Mutex
	items []proto.ClientPayload
	wake  chan struct{}
}

// push appends p, evicting the oldest entry when the class is at capacity.
func (c *classQueue) push(p proto.ClientPayload, capacity int) (proto.ClientPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted proto.ClientPayload
	dropped := false
	if len(c.items) >= capacity {
		evicted = c.items[0]
		copy(c.items, c.items[1:])
		c.items = c.items[:len(c.items)-1]
		dropped = true
	}
	c.items = append(c.items, p)
	return evicted, dropped
}

// pushFront returns an undelivered payload to the head of the line so a
// send failure costs nothing but time. Capacity may be exceeded by the
// one in-flight item.
func (c *classQueue) pushFront(p proto.ClientPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append([]proto.ClientPayload{p}, c.items...)
}

func (c *classQueue) pop() (proto.ClientPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return nil, false
	}
	p := c.items[0]
	copy(c.items, c.items[1:])
	c.items = c.items[:len(c.items)-1]
	return p, true
}

func (c *classQueue) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *classQueue) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Queue is the paced outbound pipeline. Enqueue from any goroutine; Run
// drains each class on its own goroutine until the context ends.
type Queue struct {
	log      *zerolog.Logger
	send     SendFunc
	onDrop   DropFunc
	capacity int
	classes  [numClasses]*classQueue

	gateMu sync.Mutex
	gate   chan struct{}
}

// New builds a queue draining into send.
func New(logger *zerolog.Logger, send SendFunc, opts Options) *Queue {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	q := &Queue{
		log:      logger,
		send:     send,
		onDrop:   opts.OnDrop,
		capacity: capacity,
	}
	limits := [numClasses]*rate.Limiter{
		ClassChat:    rate.NewLimiter(rate.Every(defaultMessageEvery), 1),
		ClassPrivate: rate.NewLimiter(rate.Every(defaultMessageEvery), 1),
		ClassAds:     rate.NewLimiter(rate.Every(defaultAdEvery), 1),
		ClassControl: rate.NewLimiter(defaultControlRate, controlBurst),
	}
	for class := Class(0); class < numClasses; class++ {
		q.classes[class] = &classQueue{
			class:   class,
			limiter: limits[class],
			wake:    make(chan struct{}, 1),
		}
	}
	return q
}

// Run drains all classes until ctx ends.
func (q *Queue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range q.classes {
		wg.Add(1)
		go func(c *classQueue) {
			defer wg.Done()
			q.drain(ctx, c)
		}(c)
	}
	wg.Wait()
}

// Enqueue accepts a payload for paced delivery. The call never blocks;
// when the class is full the oldest pending payload is evicted and
// reported through OnDrop.
func (q *Queue) Enqueue(p proto.ClientPayload) error {
	if bypasses(p) {
		return ErrBypassCommand
	}

	c := q.classes[Classify(p)]
	evicted, dropped := c.push(p, q.capacity)
	if dropped {
		q.log.Warn().
			Stringer("class", c.class).
			Str("evicted", evicted.ClientCommand()).
			Msg("outbound queue full, evicting oldest")
		if q.onDrop != nil {
			q.onDrop(c.class, evicted)
		}
	}
	c.signal()
	return nil
}

// Drain empties every class and reports each abandoned payload to fn.
// Called at shutdown so submitters learn their commands never went out.
func (q *Queue) Drain(fn func(class Class, p proto.ClientPayload)) {
	for _, c := range q.classes {
		for {
			item, ok := c.pop()
			if !ok {
				break
			}
			if fn != nil {
				fn(c.class, item)
			}
		}
	}
}

// Len reports how many payloads are pending in a class.
func (q *Queue) Len(class Class) int {
	return q.classes[class].len()
}

// RetuneMessages applies the server's msg_flood interval, in seconds, to
// the chat and private buckets.
func (q *Queue) RetuneMessages(seconds float64) {
	if seconds <= 0 {
		return
	}
	lim := rate.Limit(1 / seconds)
	q.classes[ClassChat].limiter.SetLimit(lim)
	q.classes[ClassPrivate].limiter.SetLimit(lim)
}

// RetuneAds applies the server's lfrp_flood interval, in seconds, to the
// ads bucket.
func (q *Queue) RetuneAds(seconds float64) {
	if seconds <= 0 {
		return
	}
	q.classes[ClassAds].limiter.SetLimit(rate.Limit(1 / seconds))
}

// Pause holds back delivery while keeping Enqueue open, so commands issued
// during a reconnect accumulate (bounded) instead of hitting a dead
// socket.
func (q *Queue) Pause() {
	q.gateMu.Lock()
	defer q.gateMu.Unlock()
	if q.gate == nil {
		q.gate = make(chan struct{})
	}
}

// Resume reopens delivery.
func (q *Queue) Resume() {
	q.gateMu.Lock()
	defer q.gateMu.Unlock()
	if q.gate != nil {
		close(q.gate)
		q.gate = nil
	}
}

func (q *Queue) gateWait(ctx context.Context) error {
	q.gateMu.Lock()
	gate := q.gate
	q.gateMu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain(ctx context.Context, c *classQueue) {
	for {
		if err := q.gateWait(ctx); err != nil {
			return
		}
		item, ok := c.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if err := q.send(item); err != nil {
			// The connection died under us. Keep the payload at the
			// head; Pause from the reconnect path (or the retry delay)
			// stops this from spinning, and a later session delivers it.
			c.pushFront(item)
			q.log.Warn().
				Err(err).
				Str("command", item.ClientCommand()).
				Msg("outbound send failed, payload requeued")
			select {
			case <-ctx.Done():
				return
			case <-time.After(sendRetryDelay):
			}
		}
	}
}

func bypasses(p proto.ClientPayload) bool {
	switch p.(type) {
	case proto.Ping, *proto.Ping, proto.Identify, *proto.Identify:
		return true
	default:
		return false
	}
}
