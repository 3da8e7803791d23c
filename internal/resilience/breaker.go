package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitOpenError is the fast-fail returned while a breaker is open. No
// retry attempts are consumed; callers treat it like a dispatch failure.
type CircuitOpenError struct {
	Dependency string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s", e.Dependency)
}

// BreakerConfig tunes one dependency's circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening
	RecoveryTimeout  time.Duration // open duration before a half-open trial
	HalfOpenMaxCalls uint32        // trial successes required to close
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// Breaker guards one external dependency. Closed accumulates consecutive
// failures; at the threshold it opens and short-circuits every call until
// the recovery timeout passes, then allows HalfOpenMaxCalls trial calls and
// closes again once they all succeed.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// CanExecute reports whether a call would currently be allowed through.
func (b *Breaker) CanExecute() bool {
	return b.cb.State() != gobreaker.StateOpen
}

// State returns the breaker state as a plain string for inspection.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Counts exposes the underlying request/failure counters.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Execute runs fn through the breaker, recording success or failure. While
// the breaker is open the call short-circuits with CircuitOpenError and fn
// is never invoked.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &CircuitOpenError{Dependency: b.name}
	}
	return result, err
}

// Protect composes the breaker with fn. When the breaker is open the
// fallback is returned instead, if one was provided; otherwise the
// CircuitOpenError surfaces without any network call having been made.
func (e *Executor) Protect(ctx context.Context, b *Breaker, fn func(ctx context.Context) (any, error), fallback func() (any, error)) (any, error) {
	result, err := b.Execute(func() (any, error) {
		return fn(ctx)
	})

	var open *CircuitOpenError
	if errors.As(err, &open) && fallback != nil {
		return fallback()
	}
	return result, err
}
