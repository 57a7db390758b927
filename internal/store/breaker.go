package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mattjoyce/inboxd/internal/message"
)

// Backend is the full store surface. *Store and *Guarded implement it.
type Backend interface {
	Insert(ctx context.Context, msg message.Message) (InsertOutcome, error)
	List(ctx context.Context, f Filter, p Page) (ListResult, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// BreakerSettings configures Guarded.
type BreakerSettings struct {
	Name         string
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	ResetAfter   time.Duration
	HalfOpenMax  uint32
	Logger       *slog.Logger
}

// Guarded fails fast with ErrUnavailable while the underlying store keeps
// failing, instead of queueing every request behind a locked database.
type Guarded struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

func NewGuarded(next Backend, s BreakerSettings) *Guarded {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := s.Name
	if name == "" {
		name = "store"
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMax,
		Interval:    s.Interval,
		Timeout:     s.ResetAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	return &Guarded{next: next, cb: cb}
}

// countsAsSuccess only trips the breaker on engine failures. Rejected input
// and callers that gave up are not the store's fault.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !errors.Is(err, ErrUnavailable)
}

// State reports the breaker state ("closed", "half-open", "open").
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func (g *Guarded) Insert(ctx context.Context, msg message.Message) (InsertOutcome, error) {
	return guard(g, "insert", func() (InsertOutcome, error) { return g.next.Insert(ctx, msg) })
}

func (g *Guarded) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	return guard(g, "list", func() (ListResult, error) { return g.next.List(ctx, f, p) })
}

func (g *Guarded) Stats(ctx context.Context) (Stats, error) {
	return guard(g, "stats", func() (Stats, error) { return g.next.Stats(ctx) })
}

func (g *Guarded) Ping(ctx context.Context) error {
	_, err := guard(g, "ping", func() (struct{}, error) { return struct{}{}, g.next.Ping(ctx) })
	return err
}

func guard[T any](g *Guarded, op string, fn func() (T, error)) (T, error) {
	var zero T
	v, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, unavailable(op, fmt.Errorf("circuit breaker: %w", err))
	}
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", op, v)
	}
	return out, nil
}
