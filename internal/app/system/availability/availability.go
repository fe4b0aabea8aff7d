// Package availability answers "is this username free?" for the start screen.
//
// Checker debounces a stream of edits to one username field and reports a
// status for the value once it has been stable for the quiet period. Each
// lookup is tagged with a sequence number; a result is applied only when its
// number is still the latest issued, so a slow lookup for an old value can
// never overwrite the status of a newer one.
package availability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/dalemusser/heard/internal/app/system/normalize"
	"go.uber.org/zap"
)

// DefaultQuietPeriod is how long a value must be unchanged before it is checked.
const DefaultQuietPeriod = 500 * time.Millisecond

// Status of a username.
type Status int

const (
	StatusUnknown   Status = iota // no answer: empty input, not yet checked, or lookup failed
	StatusChecking                // lookup in flight
	StatusAvailable               // no reservation exists
	StatusTaken                   // a reservation exists
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusAvailable:
		return "available"
	case StatusTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Available maps the status onto a nullable boolean: true, false, or nil
// when the answer is not known.
func (s Status) Available() *bool {
	var b bool
	switch s {
	case StatusAvailable:
		b = true
	case StatusTaken:
		b = false
	default:
		return nil
	}
	return &b
}

// ParseStatus is the inverse of String. Unrecognised input is StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checking":
		return StatusChecking
	case "available", "true":
		return StatusAvailable
	case "taken", "false":
		return StatusTaken
	default:
		return StatusUnknown
	}
}

// Lookup reports whether a reservation exists for a lowercased username.
type Lookup func(ctx context.Context, username string) (taken bool, err error)

// Check runs one lookup without debouncing. Empty input is StatusUnknown and
// is not looked up. On error the status is StatusUnknown and err is returned
// for the caller to log.
func Check(ctx context.Context, lookup Lookup, username string) (Status, error) {
	key := normalize.Username(username)
	if key == "" {
		return StatusUnknown, nil
	}
	taken, err := lookup(ctx, key)
	if err != nil {
		metrics.AvailabilityLookups.WithLabelValues("error").Inc()
		return StatusUnknown, err
	}
	if taken {
		metrics.AvailabilityLookups.WithLabelValues("taken").Inc()
		return StatusTaken, nil
	}
	metrics.AvailabilityLookups.WithLabelValues("available").Inc()
	return StatusAvailable, nil
}

// Result is one status report from a Checker.
type Result struct {
	Username string // the value as observed (trimmed)
	Status   Status
	Seq      uint64 // sequence number of the lookup this status belongs to
}

// Timer is the part of *time.Timer a Checker needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through Options.
type AfterFunc func(d time.Duration, f func()) Timer

// Options configure a Checker. Zero values select defaults.
type Options struct {
	QuietPeriod   time.Duration
	LookupTimeout time.Duration // default 5s
	AfterFunc     AfterFunc     // default time.AfterFunc
	Logger        *zap.Logger
}

// Checker debounces edits to a single username field. It is safe for
// concurrent use. OnChange callbacks run while the Checker's lock is held,
// in the order the changes happened, and must not call back into the Checker.
type Checker struct {
	lookup   Lookup
	onChange func(Result)
	quiet    time.Duration
	timeout  time.Duration
	after    AfterFunc
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	value  string // latest observed value
	status Status
	seq    uint64 // latest issued sequence number
	timer  Timer
	closed bool
}

// NewChecker returns a Checker that reports status changes to onChange.
func NewChecker(lookup Lookup, onChange func(Result), opts Options) *Checker {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if onChange == nil {
		onChange = func(Result) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		lookup:   lookup,
		onChange: onChange,
		quiet:    opts.QuietPeriod,
		timeout:  opts.LookupTimeout,
		after:    opts.AfterFunc,
		log:      opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Observe records the current field value. An unchanged value is ignored,
// so a settled answer is never looked up twice. A changed value restarts the
// quiet period and clears the previous answer. An empty value resets to
// StatusUnknown without a lookup.
func (c *Checker) Observe(value string) {
	value = strings.TrimSpace(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || value == c.value {
		return
	}
	c.value = value
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// Anything in flight now answers for a stale value.
	c.seq++

	c.setLocked(StatusUnknown)
	if value == "" {
		return
	}
	seq := c.seq
	c.timer = c.after(c.quiet, func() { c.fire(seq) })
}

// Current returns the latest status.
func (c *Checker) Current() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{Username: c.value, Status: c.status, Seq: c.seq}
}

// Close stops the timer and discards results of lookups still in flight.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
}

// fire runs when the quiet period for the edit numbered armed expires.
func (c *Checker) fire(armed uint64) {
	c.mu.Lock()
	if c.closed || armed != c.seq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.seq++
	seq := c.seq
	value := c.value
	c.setLocked(StatusChecking)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	status, err := Check(ctx, c.lookup, value)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.seq {
		c.log.Debug("discarding superseded availability result",
			zap.String("username", value),
			zap.Uint64("seq", seq))
		return
	}
	if err != nil {
		c.log.Warn("username availability lookup failed",
			zap.String("username", value),
			zap.Error(err))
	}
	c.setLocked(status)
}

func (c *Checker) setLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.onChange(Result{Username: c.value, Status: s, Seq: c.seq})
}
