package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/clubnote/internal/observe"
)

// ErrExhausted is returned by [Call] when no provider in a [Chain] produced
// an answer. The individual provider errors are wrapped alongside it.
var ErrExhausted = errors.New("resilience: every provider failed")

// FallbackConfig configures the breakers of a [Chain] and where it reports.
type FallbackConfig struct {
	Breaker BreakerConfig
	// Metrics, when set, receives one provider request per attempt.
	Metrics *observe.Metrics
}

type link[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

// Chain is an ordered list of interchangeable providers of kind (for
// example "llm" or "stt"). The first entry is the primary.
//
// Entries are added during start-up; a Chain must not be extended while
// [Call] is running on it.
type Chain[T any] struct {
	kind  string
	cfg   FallbackConfig
	links []link[T]
}

// NewChain returns an empty chain for providers of kind.
func NewChain[T any](kind string, cfg FallbackConfig) *Chain[T] {
	return &Chain[T]{kind: kind, cfg: cfg}
}

// Add appends backend under name and returns c for chaining.
func (c *Chain[T]) Add(name string, backend T) *Chain[T] {
	c.links = append(c.links, link[T]{
		name:    name,
		backend: backend,
		breaker: NewBreaker(name, c.cfg.Breaker),
	})
	return c
}

// Len returns the number of providers in the chain.
func (c *Chain[T]) Len() int { return len(c.links) }

// Primary returns the first provider.
func (c *Chain[T]) Primary() (T, bool) {
	if len(c.links) == 0 {
		var zero T
		return zero, false
	}
	return c.links[0].backend, true
}

// States reports the breaker state of every provider by name.
func (c *Chain[T]) States() map[string]State {
	out := make(map[string]State, len(c.links))
	for _, l := range c.links {
		out[l.name] = l.breaker.State()
	}
	return out
}

// Call runs fn against each provider of c in order and returns the first
// success. Providers for which skip reports true are passed over without
// touching their breaker. The walk stops early once ctx is done.
func Call[T, R any](ctx context.Context, c *Chain[T], skip func(T) bool, fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, l := range c.links {
		if skip != nil && skip(l.backend) {
			continue
		}
		var out R
		err := l.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx, l.backend)
			return err
		})
		c.record(ctx, l.name, err)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if !errors.Is(err, ErrBreakerOpen) {
			slog.Warn("provider failed", "kind", c.kind, "provider", l.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
	}
	if len(errs) == 0 {
		return zero, fmt.Errorf("%w: no %s provider can serve the request", ErrExhausted, c.kind)
	}
	return zero, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

func (c *Chain[T]) record(ctx context.Context, name string, err error) {
	m := c.cfg.Metrics
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, ErrBreakerOpen):
		status = "shed"
	case err != nil:
		status = observe.Outcome(err)
		m.RecordProviderError(ctx, name, c.kind)
	}
	m.RecordProviderRequest(ctx, name, c.kind, status)
}
