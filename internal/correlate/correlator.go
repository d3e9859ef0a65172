// Package correlate tracks outstanding asynchronous exchanges by transaction
// id. One mechanism covers both traffic shapes: point-to-point actions expect
// a single reply, discovery fan-outs expect one per eligible participant.
package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"becknet/internal/platform/metrics"
)

// State is the lifecycle state of a correlation entry.
type State string

const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateExpired  State = "expired"
)

// AcceptResult classifies what happened to an inbound reply.
type AcceptResult string

const (
	// Accepted means the reply was recorded and the entry is still pending.
	Accepted AcceptResult = "accepted"
	// Completed means this reply satisfied the expected count.
	Completed AcceptResult = "completed"
	// DuplicateResponder means this responder already replied; first wins.
	DuplicateResponder AcceptResult = "duplicate_responder"
	// LateOrUnknown means no live entry matched; the reply is dropped.
	LateOrUnknown AcceptResult = "late_or_unknown"
)

// ErrDuplicateCorrelation reports a Register for a transaction id that is
// still live (pending or within its post-terminal grace window).
var ErrDuplicateCorrelation = errors.New("correlation already registered")

// Unbounded registers an entry with no completing reply count: it collects
// replies until the deadline. A requester awaiting discovery callbacks does
// not know how many participants the gateway fanned out to.
const Unbounded = -1

// Reply is one responder's callback for a correlated exchange.
type Reply struct {
	ResponderID string
	Payload     json.RawMessage
	ReceivedAt  time.Time
}

// Outcome is the terminal result of an exchange. An expired outcome with
// fewer replies than expected is a normal completion mode, not an error:
// unreachable participants simply never contribute.
type Outcome struct {
	State    State
	Replies  []Reply
	Expected int
	Received int
}

type entry struct {
	mu       sync.Mutex
	state    State
	expected int
	replies  []Reply
	seen     map[string]struct{}
	deadline time.Time
	done     chan struct{}
	stream   chan Reply
	expiry   *time.Timer
}

// Correlator owns the correlation table. Accept is atomic with respect to
// count-checking and state transition, so two racing replies can never both
// resolve an entry.
type Correlator struct {
	mu      sync.Mutex
	entries map[string]*entry
	grace   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithMetrics records terminal correlation states.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// New builds a Correlator. Terminal entries linger for the grace window to
// absorb late duplicate callbacks, then are evicted.
func New(grace time.Duration, logger *slog.Logger, opts ...Option) *Correlator {
	c := &Correlator{
		entries: make(map[string]*entry),
		grace:   grace,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultStreamCap buffers unbounded entries' reply streams.
const defaultStreamCap = 64

// Register creates a pending entry expecting the given reply count before the
// deadline. An expected count of zero resolves immediately (an empty fan-out
// set has nothing to wait for); Unbounded collects until the deadline.
func (c *Correlator) Register(txnID string, expected int, deadline time.Time) error {
	c.mu.Lock()
	if _, exists := c.entries[txnID]; exists {
		c.mu.Unlock()
		return ErrDuplicateCorrelation
	}
	e := &entry{
		state:    StatePending,
		expected: expected,
		seen:     make(map[string]struct{}),
		deadline: deadline,
		done:     make(chan struct{}),
		stream:   make(chan Reply, max(expected, defaultStreamCap)),
	}
	c.entries[txnID] = e
	c.mu.Unlock()

	if expected == 0 {
		e.mu.Lock()
		c.terminate(txnID, e, StateResolved)
		e.mu.Unlock()
		return nil
	}

	e.expiry = time.AfterFunc(time.Until(deadline), func() {
		c.expire(txnID)
	})
	return nil
}

// Accept records a reply. The first reply per responder wins; a second one
// from the same responder is rejected without being treated as an upstream
// error, which neutralizes duplicated and replayed callbacks.
func (c *Correlator) Accept(txnID, responderID string, payload json.RawMessage) AcceptResult {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return LateOrUnknown
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePending {
		return LateOrUnknown
	}
	if _, dup := e.seen[responderID]; dup {
		return DuplicateResponder
	}

	e.seen[responderID] = struct{}{}
	reply := Reply{ResponderID: responderID, Payload: payload, ReceivedAt: c.now()}
	e.replies = append(e.replies, reply)
	// Buffered to the expected count, so this never blocks under the lock
	// and consumers see replies in acceptance order.
	select {
	case e.stream <- reply:
	default:
	}

	if e.expected > 0 && len(e.replies) >= e.expected {
		c.terminate(txnID, e, StateResolved)
		return Completed
	}
	return Accepted
}

// Await suspends until the entry resolves or expires, returning the collected
// replies. Abandoning the wait (ctx cancellation) does not tear the entry
// down: late replies are still accepted until the deadline, since the
// forwarding consumer may still care.
func (c *Correlator) Await(ctx context.Context, txnID string) (Outcome, error) {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return Outcome{}, errors.New("unknown correlation " + txnID)
	}

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-e.done:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return c.outcomeLocked(e), nil
}

// Replies returns the per-entry stream of accepted replies in arrival order.
// The channel closes when the entry reaches a terminal state.
func (c *Correlator) Replies(txnID string) (<-chan Reply, bool) {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.stream, true
}

// Close resolves an entry manually with whatever was collected, used when a
// synchronous negative acknowledgement makes further waiting pointless.
func (c *Correlator) Close(txnID string) bool {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePending {
		return false
	}
	c.terminate(txnID, e, StateResolved)
	return true
}

// Outcome reports the current state of an entry without waiting.
func (c *Correlator) Outcome(txnID string) (Outcome, bool) {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return Outcome{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.outcomeLocked(e), true
}

func (c *Correlator) expire(txnID string) {
	c.mu.Lock()
	e, ok := c.entries[txnID]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePending {
		return
	}
	c.terminate(txnID, e, StateExpired)
	c.logger.Info("correlation expired with callbacks outstanding",
		"transaction_id", txnID,
		"expected", e.expected,
		"received", len(e.replies),
	)
}

// terminate moves an entry to a terminal state and schedules its eviction.
// Callers hold e.mu.
func (c *Correlator) terminate(txnID string, e *entry, state State) {
	e.state = state
	if e.expiry != nil {
		e.expiry.Stop()
	}
	close(e.done)
	close(e.stream)
	c.metrics.ObserveCorrelation(string(state))

	time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		delete(c.entries, txnID)
		c.mu.Unlock()
	})
}

func (c *Correlator) outcomeLocked(e *entry) Outcome {
	replies := make([]Reply, len(e.replies))
	copy(replies, e.replies)
	return Outcome{
		State:    e.state,
		Replies:  replies,
		Expected: e.expected,
		Received: len(e.replies),
	}
}
