// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider

import (
	"sync"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
)

const (
	// DefaultFailureThreshold is how many consecutive failures open a
	// breaker. Sources of one kind fail as a group per cascade call, so the
	// count advances once per failed source attempt.
	DefaultFailureThreshold = 3

	// DefaultResetTimeout is how long an open breaker blocks live fetches
	// before the failure count resets.
	DefaultResetTimeout = 60 * time.Second
)

// Breaker is a circuit breaker scoped to one upstream class (one market
// data kind), not one source. There is no half-open probe: once the reset
// timeout passes the count drops to zero and the next call runs a full
// source walk.
type Breaker struct {
	mu            sync.Mutex
	threshold     int64
	resetTimeout  time.Duration
	failureCount  int64
	lastFailureAt time.Time

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(threshold int64, resetTimeout time.Duration) (*Breaker, error) {
	if threshold <= 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"breaker threshold must be positive, got %d", threshold)
	}
	if resetTimeout <= 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"breaker reset timeout must be positive, got %s", resetTimeout)
	}
	return &Breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		nowFunc:      time.Now,
	}, nil
}

// Allow reports whether a live fetch may proceed. Crossing the reset
// timeout lazily closes the breaker as a side effect.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeResetLocked()
	return b.failureCount < b.threshold
}

// RecordFailure advances the consecutive-failure count.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureAt = b.nowFunc()
}

// RecordSuccess closes the breaker immediately.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
}

// Metrics returns a snapshot of the breaker's current state.
func (b *Breaker) Metrics() health.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeResetLocked()

	m := health.Metrics{
		FailureCount: b.failureCount,
		Available:    b.failureCount < b.threshold,
	}
	if !b.lastFailureAt.IsZero() {
		at := b.lastFailureAt
		m.LastFailureAt = &at
	}
	if !m.Available {
		until := b.lastFailureAt.Add(b.resetTimeout)
		m.CooldownUntil = &until
	}
	return m
}

// SetNowFunc overrides the clock. Tests only.
func (b *Breaker) SetNowFunc(f func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFunc = f
}

// maybeResetLocked closes an open breaker whose reset timeout has elapsed.
// Caller must hold b.mu.
func (b *Breaker) maybeResetLocked() {
	if b.failureCount < b.threshold {
		return
	}
	if b.nowFunc().Sub(b.lastFailureAt) > b.resetTimeout {
		b.failureCount = 0
	}
}
