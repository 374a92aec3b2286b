package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/signalsfoundry/scenario-editor/internal/logging"
	"github.com/signalsfoundry/scenario-editor/model"
)

// BreakerConfig tunes the circuit breaker in front of a backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns thresholds suited to a remote backend.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// Breaker stops calling a failing backend for a while. Calls rejected by an
// open breaker fail with ErrUnavailable. Not-found and invalid-key results
// are answers, not failures, and never trip it.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Store, cfg BreakerConfig, log logging.Logger) *Breaker {
	if log == nil {
		log = logging.Noop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "store circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// State returns the breaker state name.
func (b *Breaker) State() string { return b.cb.State().String() }

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, err
}

// List implements Store.
func (b *Breaker) List(ctx context.Context) ([]model.Summary, error) {
	v, err := b.execute(func() (any, error) { return b.next.List(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]model.Summary), nil
}

// Load implements Store.
func (b *Breaker) Load(ctx context.Context, id string) (*model.Scenario, error) {
	v, err := b.execute(func() (any, error) { return b.next.Load(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.(*model.Scenario), nil
}

// Save implements Store.
func (b *Breaker) Save(ctx context.Context, s *model.Scenario) error {
	_, err := b.execute(func() (any, error) { return nil, b.next.Save(ctx, s) })
	return err
}

// Delete implements Store.
func (b *Breaker) Delete(ctx context.Context, id string) error {
	_, err := b.execute(func() (any, error) { return nil, b.next.Delete(ctx, id) })
	return err
}
