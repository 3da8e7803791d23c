/*
Copyright 2025 Outbound Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package resilience wraps external calls with retries, exponential backoff
// and a circuit breaker, so flaky collaborator APIs cannot take the
// pipeline down with them.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// retryableStatusCodes are the HTTP responses worth retrying. Anything else
// fails immediately.
var retryableStatusCodes = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// HTTPError carries an upstream HTTP failure through the classification.
// RetryAfter, when set from a server hint, overrides the computed backoff
// delay for one attempt.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// TransientError marks any non-HTTP failure as retryable, e.g. a broken
// connection reported by an SDK that does not surface status codes.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is returned once every attempt has failed with a
// retryable error. It carries the attempt count and the last underlying
// error so callers can decide whether to retry manually.
type RetriesExhaustedError struct {
	Operation string
	Attempts  int
	LastErr   error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// Classify reports whether an error is worth retrying and, for rate-limit
// responses, the server-provided retry-after hint.
func Classify(err error) (retryable bool, retryAfter time.Duration) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatusCodes[httpErr.StatusCode], httpErr.RetryAfter
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return true, 0
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true, 0
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, 0
	}

	return false, 0
}

// Config tunes the retry loop.
type Config struct {
	MaxRetries  int           // retries after the first attempt
	BaseBackoff time.Duration // first delay; doubles per attempt
	MaxBackoff  time.Duration // delay cap
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
	}
}

// Executor runs external calls with retry and backoff.
type Executor struct {
	cfg Config
}

func NewExecutor(cfg Config) *Executor {
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Executor{cfg: cfg}
}

// newBackOff builds the delay source: base * 2^attempt with ±20% jitter,
// capped at MaxBackoff.
func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.BaseBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxInterval = e.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Call invokes fn, retrying retryable failures until MaxRetries is
// exhausted. A non-retryable error is returned immediately. Retry sleeps
// select on the context, so a cancelled caller never keeps retrying in the
// background.
func (e *Executor) Call(ctx context.Context, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	bo := e.newBackOff()
	attempts := e.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		retryable, retryAfter := Classify(err)
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := bo.NextBackOff()
		if retryAfter > 0 {
			// Server knows best for this one attempt.
			delay = retryAfter
		}
		logrus.Warnf("%s attempt %d/%d failed, retrying in %s: %v", operation, attempt+1, attempts, delay, err)

		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &RetriesExhaustedError{Operation: operation, Attempts: attempts, LastErr: lastErr}
}

// sleepContext waits for the duration or until the context is done,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
