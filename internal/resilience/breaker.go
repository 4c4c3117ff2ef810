// Package resilience keeps a flaky provider from stalling a pipeline run.
//
// A [Breaker] stops calling a provider that keeps failing and lets a few
// probe calls through once a cooldown has passed. A [Chain] walks providers
// of one kind in preference order, each behind its own breaker. [RetryOnce]
// covers a single transient failure of one call.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while calls are being shed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// State is the operating mode of a [Breaker].
type State uint8

const (
	// Closed forwards every call.
	Closed State = iota
	// Open sheds every call until the cooldown has passed.
	Open
	// HalfOpen admits a limited number of probe calls.
	HalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker. Default 5.
	Threshold int
	// Cooldown is how long the breaker stays open. Default 30s.
	Cooldown time.Duration
	// Probes is the number of successful half-open calls needed to close
	// again. Default 2.
	Probes int
	// OnTransition is called with the breaker lock held. It must not call
	// back into the breaker.
	OnTransition func(name string, from, to State)
	// Clock replaces time.Now in tests.
	Clock func() time.Time
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 2
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Breaker guards calls to one provider. Safe for concurrent use.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  int // half-open calls in flight
	passed   int // half-open calls that succeeded
}

// NewBreaker returns a closed breaker for the provider called name.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults()}
}

// Name returns the provider name the breaker was created for.
func (b *Breaker) Name() string { return b.name }

// Do runs fn unless the breaker sheds the call. A failure that happens after
// ctx ended is returned unchanged but not held against the provider: a run
// timeout is not the provider's fault.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.settle(probe, err, ctx.Err() != nil)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return false, nil
	case Open:
		if b.cfg.Clock().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrBreakerOpen
		}
		b.probing, b.passed = 0, 0
		b.move(HalfOpen)
		slog.Info("provider breaker probing", "provider", b.name)
	}
	if b.probing+b.passed >= b.cfg.Probes {
		return false, ErrBreakerOpen
	}
	b.probing++
	return true, nil
}

func (b *Breaker) settle(probe bool, err error, ctxDone bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	halfOpen := probe && b.state == HalfOpen
	if halfOpen {
		b.probing--
	}
	switch {
	case err != nil && ctxDone:
	case err != nil:
		b.failures++
		if probe || b.failures >= b.cfg.Threshold {
			b.trip()
		}
	case halfOpen:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.failures = 0
			b.move(Closed)
			slog.Info("provider breaker closed", "provider", b.name)
		}
	case b.state == Closed:
		b.failures = 0
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.cfg.Clock()
	if b.state != Open {
		slog.Warn("provider breaker opened", "provider", b.name, "failures", b.failures)
	}
	b.move(Open)
}

// State reports the current state. An open breaker whose cooldown has passed
// reports [HalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cfg.Clock().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset closes the breaker and forgets all failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures, b.probing, b.passed = 0, 0, 0
	b.move(Closed)
}

func (b *Breaker) move(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnTransition != nil {
		b.cfg.OnTransition(b.name, from, to)
	}
}
