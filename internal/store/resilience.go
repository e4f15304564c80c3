// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package store

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// RetryPolicy applies bounded retry to transient storage failures. It is
// the only place in the system where retries occur: constraint and
// data-input errors surface immediately, availability errors are reported
// without further attempts, and only transient (busy/locked) errors are
// retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; subsequent
	// delays double.
	InitialBackoff time.Duration
	// MaxBackoff caps each delay. The exponential curve is unioned with a
	// flat schedule at this interval.
	MaxBackoff time.Duration
	// JitterFactor is the maximum jitter as a fraction of the delay (0-1).
	JitterFactor float64

	logger *slog.Logger
}

// DefaultRetryPolicy returns the standard storage retry policy:
// 5 attempts, exponential from 50ms with 20% jitter, capped at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		JitterFactor:   0.2,
		logger:         slog.Default(),
	}
}

// Do runs fn, retrying transient storage errors per the policy. op names
// the operation for logging. Non-retryable errors return immediately;
// retry exhaustion converts the last transient error into an availability
// failure.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return mnerr.Wrapf(err, mnerr.CodeStorageUnavailable, "%s: cancelled", op)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !mnerr.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := p.backoff(attempt)
		logger.Debug("retrying storage operation",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return mnerr.Wrapf(ctx.Err(), mnerr.CodeStorageUnavailable, "%s: cancelled during backoff", op)
		}
	}

	return mnerr.Wrapf(lastErr, mnerr.CodeStorageUnavailable,
		"%s: retries exhausted after %d attempts", op, attempts)
}

// backoff computes the jittered delay before retry number attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = 50 * time.Millisecond
	}
	maxDelay := p.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = time.Second
	}

	delay := initial << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	if p.JitterFactor > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFactor * float64(delay))
		delay += jitter
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return delay
}
