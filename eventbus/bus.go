package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowctl/orchestrator/resultx"
)

// OverflowPolicy governs what a subscriber's queue does when full.
type OverflowPolicy string

const (
	// DropOldest discards the queue's oldest unread event to make room, the
	// default for observability channels where recency matters more than
	// completeness.
	DropOldest OverflowPolicy = "DROP_OLDEST"
	// DropNewest discards the incoming event, leaving the queue untouched.
	DropNewest OverflowPolicy = "DROP_NEWEST"
	// BlockPublisher makes Publish block until the subscriber has room, the
	// default for command channels where delivery must not be lossy.
	BlockPublisher OverflowPolicy = "BLOCK_PUBLISHER"
	// FailPublisher makes Publish return an ErrExecution error whose context
	// carries code=EVENT_BUS_FULL immediately rather than block or drop.
	FailPublisher OverflowPolicy = "FAIL_PUBLISHER"
)

// ChannelConfig configures a channel's delivery semantics.
type ChannelConfig struct {
	// Capacity is each subscriber's independent queue bound.
	Capacity int
	// Overflow is applied per subscriber when its queue is full.
	Overflow OverflowPolicy
	// StrictOrder serializes delivery across publishers with a single
	// channel-wide lock, guaranteeing global (not just per-publisher)
	// ordering at the cost of publisher concurrency.
	StrictOrder bool
}

// DefaultChannelConfig returns DROP_OLDEST with a 256-event queue, suited to
// observability channels.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{Capacity: 256, Overflow: DropOldest}
}

// CommandChannelConfig returns BLOCK_PUBLISHER with a 64-event queue,
// suited to command channels where no event may be silently lost.
func CommandChannelConfig() ChannelConfig {
	return ChannelConfig{Capacity: 64, Overflow: BlockPublisher}
}

// Envelope wraps a published payload with delivery metadata.
type Envelope struct {
	ID        string
	Channel   string
	Type      string
	Version   int
	Timestamp time.Time
	Metadata  map[string]any
	Payload   any
}

// DeadLetter records an envelope that failed to deserialize during
// delivery, along with the error that caused it.
type DeadLetter struct {
	Envelope Envelope
	Err      error
}

// Stats are atomically-consistent (mutex-guarded) per-channel counters.
type Stats struct {
	Publishes    uint64
	Consumes     uint64
	DeadLettered uint64
}

// Channel is a named, schema-bound pub/sub topic.
type Channel struct {
	name    string
	evType  string
	version int
	config  ChannelConfig
	codec   Codec

	mu          sync.Mutex
	subscribers map[string]*Subscription
	strictMu    sync.Mutex

	statsMu sync.Mutex
	stats   Stats

	bus *Bus
}

// Name, Type, and Version expose the channel's identity.
func (c *Channel) Name() string  { return c.name }
func (c *Channel) Type() string  { return c.evType }
func (c *Channel) Version() int  { return c.version }

// Stats returns a snapshot of this channel's counters.
func (c *Channel) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Subscription is an independent, bounded queue of envelopes for one
// consumer. A Subscription is restartable (repeated Next calls) and
// cooperative: only the goroutine calling Next should read from it.
type Subscription struct {
	id      string
	ch      chan Envelope
	cancel  func()
	closed  bool
	mu      sync.Mutex
}

// Next blocks until an envelope arrives, done is closed, or the
// subscription is cancelled, returning (envelope, true) or (zero, false).
func (s *Subscription) Next(done <-chan struct{}) (Envelope, bool) {
	select {
	case e, ok := <-s.ch:
		return e, ok
	case <-done:
		return Envelope{}, false
	}
}

// Cancel unsubscribes; the channel stops delivering to this subscription.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// Bus is the process-wide event bus: a SchemaRegistry plus the set of
// live channels constructed against it, and a dead-letter sink shared by
// every channel.
type Bus struct {
	registry *SchemaRegistry

	mu       sync.Mutex
	channels map[string]*Channel

	deadLetterMu sync.Mutex
	deadLetters  []DeadLetter
	onDeadLetter func(DeadLetter)
}

// NewBus builds a Bus against the given SchemaRegistry. Channels created
// from this Bus can only use (type, version) pairs already registered.
func NewBus(registry *SchemaRegistry) *Bus {
	return &Bus{registry: registry, channels: make(map[string]*Channel)}
}

// OnDeadLetter installs a callback invoked synchronously, after the bus's
// dead-letter lock is released, whenever an envelope is dead-lettered. It
// runs on the goroutine that dead-lettered the envelope, so keep it fast.
func (b *Bus) OnDeadLetter(fn func(DeadLetter)) {
	b.deadLetterMu.Lock()
	defer b.deadLetterMu.Unlock()
	b.onDeadLetter = fn
}

// DeadLetters returns a copy of all dead-lettered envelopes recorded so far.
func (b *Bus) DeadLetters() []DeadLetter {
	b.deadLetterMu.Lock()
	defer b.deadLetterMu.Unlock()
	out := make([]DeadLetter, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

// Channel returns the channel handle for (name, eventType, version, config),
// failing if the (eventType, version) pair has no registered schema.
// Channels with the same name return the same handle on subsequent calls;
// once a name exists, the eventType, version, and config arguments of later
// calls are not compared against it (beyond the registry check above).
func (b *Bus) Channel(name, eventType string, version int, config ChannelConfig) resultx.Result[*Channel] {
	if !b.registry.Registered(eventType, version) {
		return resultx.Fail[*Channel](
			resultx.New("eventbus", resultx.ErrInvalidInput, "schema not registered for channel").
				WithSubject(name).
				WithContext("eventType", eventType).
				WithContext("version", version),
		)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.channels[name]; ok {
		return resultx.Ok(existing)
	}

	if config.Capacity <= 0 {
		config.Capacity = 256
	}
	if config.Overflow == "" {
		config.Overflow = DropOldest
	}

	codec, _ := b.registry.Lookup(eventType, version)
	ch := &Channel{
		name:        name,
		evType:      eventType,
		version:     version,
		config:      config,
		codec:       codec,
		subscribers: make(map[string]*Subscription),
		bus:         b,
	}
	b.channels[name] = ch
	return resultx.Ok(ch)
}

// Subscribe registers a new independent subscriber queue on c.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Envelope, c.config.Capacity)
	sub := &Subscription{id: id, ch: ch}
	sub.cancel = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
		close(ch)
	}
	c.subscribers[id] = sub
	return sub
}

// Publish serializes payload with the channel's codec, wraps it in an
// envelope, and delivers to every current subscriber per the channel's
// overflow policy. A serialization failure or FAIL_PUBLISHER-triggered
// overflow is returned as an error; delivery itself never returns an error
// to the publisher (deserialization failures during delivery are routed to
// the dead-letter sink instead).
func (c *Channel) Publish(payload any, metadata map[string]any) resultx.Result[string] {
	if c.config.StrictOrder {
		c.strictMu.Lock()
		defer c.strictMu.Unlock()
	}

	if _, err := c.codec.Encode(payload); err != nil {
		return resultx.Fail[string](resultx.New("eventbus", resultx.ErrSchemaInvalid, "failed to serialize event payload").WithSubject(c.name).WithCause(err))
	}

	env := Envelope{
		ID:        uuid.NewString(),
		Channel:   c.name,
		Type:      c.evType,
		Version:   c.version,
		Timestamp: time.Now(),
		Metadata:  metadata,
		Payload:   payload,
	}

	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		if err := c.deliver(s, env); err != nil {
			return resultx.Fail[string](err)
		}
	}

	c.statsMu.Lock()
	c.stats.Publishes++
	c.statsMu.Unlock()

	return resultx.Ok(env.ID)
}

func (c *Channel) deliver(s *Subscription, env Envelope) *resultx.Error {
	select {
	case s.ch <- env:
		c.statsMu.Lock()
		c.stats.Consumes++
		c.statsMu.Unlock()
		return nil
	default:
	}

	switch c.config.Overflow {
	case DropNewest:
		return nil
	case DropOldest:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- env:
		default:
		}
		return nil
	case BlockPublisher:
		s.ch <- env
		return nil
	case FailPublisher:
		return resultx.New("eventbus", resultx.ErrExecution, "event bus channel full").WithSubject(c.name).WithContext("code", "EVENT_BUS_FULL")
	default:
		return nil
	}
}

// DeadLetter routes env to the bus-wide dead-letter sink, incrementing this
// channel's DeadLettered counter. Subscriber-side decode failures call
// this rather than surfacing the error to the subscriber.
func (c *Channel) DeadLetter(env Envelope, cause error) {
	c.statsMu.Lock()
	c.stats.DeadLettered++
	c.statsMu.Unlock()

	c.bus.deadLetterMu.Lock()
	dl := DeadLetter{Envelope: env, Err: cause}
	c.bus.deadLetters = append(c.bus.deadLetters, dl)
	cb := c.bus.onDeadLetter
	c.bus.deadLetterMu.Unlock()

	if cb != nil {
		cb(dl)
	}
}
