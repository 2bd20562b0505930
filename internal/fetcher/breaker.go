package fetcher

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a host's circuit breaker.
type BreakerState int

// Breaker states.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrHostUnavailable is returned without contacting a host whose breaker is open.
var ErrHostUnavailable = eris.New("host unavailable after repeated failures")

// BreakerOptions configures the per-host circuit breakers.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold int
	// ResetTimeout is how long an open breaker waits before letting one
	// trial call through. Default: 1m.
	ResetTimeout time.Duration
}

// Breaker stops calls to a failing host until a reset timeout passes.
type Breaker struct {
	opts BreakerOptions

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	// probing is set while the single half-open trial call runs.
	probing bool

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = time.Minute
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the breaker's state. An open breaker past its reset timeout
// reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.opts.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Do runs fn unless the breaker is open. Once the reset timeout passes, one
// call is let through as a trial and others fail fast until it finishes.
// Context cancellation does not count as a failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.allow()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(err, trial)
	return err
}

// allow reports whether the caller may proceed and whether it is the
// half-open trial.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.opts.ResetTimeout {
			return false, ErrHostUnavailable
		}
		b.state = BreakerHalfOpen
	case BreakerHalfOpen:
		if b.probing {
			return false, ErrHostUnavailable
		}
	default:
		return false, nil
	}
	b.probing = true
	return true, nil
}

func (b *Breaker) record(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.probing = false
	} else if b.state == BreakerHalfOpen {
		// Calls started before the breaker opened do not decide the trial.
		return
	}

	if err == nil || errors.Is(err, context.Canceled) {
		if err == nil {
			b.state = BreakerClosed
			b.failures = 0
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.opts.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

// hostBreakers lazily creates one breaker per host.
type hostBreakers struct {
	opts BreakerOptions

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func newHostBreakers(opts BreakerOptions) *hostBreakers {
	return &hostBreakers{opts: opts, breakers: make(map[string]*Breaker)}
}

func (h *hostBreakers) get(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[host]
	if !ok {
		b = NewBreaker(h.opts)
		h.breakers[host] = b
	}
	return b
}

// guard runs fn through the breaker for src's host.
func (h *hostBreakers) guard(ctx context.Context, src string, fn func(context.Context) error) error {
	host := src
	if u, err := url.Parse(src); err == nil && u.Host != "" {
		host = u.Host
	}
	b := h.get(host)
	before := b.State()
	err := b.Do(ctx, fn)
	if after := b.State(); after != before {
		zap.L().Warn("fetcher: breaker state changed",
			zap.String("host", host),
			zap.Stringer("from", before),
			zap.Stringer("to", after),
		)
	}
	if errors.Is(err, ErrHostUnavailable) {
		return eris.Wrapf(err, "fetcher: %s", host)
	}
	return err
}

// BreakerStates returns the state of every host contacted so far.
func (r *Resolver) BreakerStates() map[string]BreakerState {
	r.breakers.mu.Lock()
	hosts := make(map[string]*Breaker, len(r.breakers.breakers))
	for host, b := range r.breakers.breakers {
		hosts[host] = b
	}
	r.breakers.mu.Unlock()

	out := make(map[string]BreakerState, len(hosts))
	for host, b := range hosts {
		out[host] = b.State()
	}
	return out
}
