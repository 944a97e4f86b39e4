// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrabdussalam/zakat-rates/internal/provider"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func newTestBreaker(t *testing.T) (*provider.Breaker, *time.Time) {
	t.Helper()

	b, err := provider.NewBreaker(3, 60*time.Second)
	require.NoError(t, err)

	now := time.Now()
	b.SetNowFunc(func() time.Time { return now })
	return b, &now
}

func TestNewBreakerValidation(t *testing.T) {
	tests := []struct {
		name      string
		threshold int64
		timeout   time.Duration
	}{
		{"zero threshold", 0, time.Minute},
		{"negative threshold", -1, time.Minute},
		{"zero timeout", 3, 0},
		{"negative timeout", 3, -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.NewBreaker(tt.threshold, tt.timeout)
			require.Error(t, err)
			assert.True(t, zrerr.HasCode(err, zrerr.CodeConfigValidateInvalidValue),
				"expected %s, got %s", zrerr.CodeConfigValidateInvalidValue, zrerr.CodeOf(err))
		})
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(t)
	assert.True(t, b.Allow())

	m := b.Metrics()
	assert.True(t, m.Available)
	assert.Equal(t, int64(0), m.FailureCount)
	assert.Nil(t, m.LastFailureAt)
	assert.Nil(t, m.CooldownUntil)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold stays closed")

	b.RecordFailure()
	assert.False(t, b.Allow(), "threshold reached opens the breaker")

	m := b.Metrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(3), m.FailureCount)
	require.NotNil(t, m.CooldownUntil)
	require.NotNil(t, m.LastFailureAt)
	assert.Equal(t, m.LastFailureAt.Add(60*time.Second), *m.CooldownUntil)
}

func TestBreakerClosesAfterResetTimeout(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.False(t, b.Allow())

	// Exactly at the timeout the breaker is still open; strictly past it
	// the count resets to zero.
	*now = now.Add(60 * time.Second)
	assert.False(t, b.Allow())

	*now = now.Add(time.Second)
	assert.True(t, b.Allow())

	m := b.Metrics()
	assert.True(t, m.Available)
	assert.Equal(t, int64(0), m.FailureCount)
}

func TestBreakerResetStartsFreshCount(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	*now = now.Add(61 * time.Second)
	require.True(t, b.Allow())

	// After the lazy reset a single failure is one of a new run of three,
	// not a re-trip.
	b.RecordFailure()
	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestRecordSuccessClosesImmediately(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The success wiped the run; two more failures stay below threshold.
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestBreakerMetricsReflectLazyReset(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.False(t, b.Metrics().Available)

	// Reading metrics after the timeout reports the breaker closed even if
	// Allow was never called.
	*now = now.Add(2 * time.Minute)
	m := b.Metrics()
	assert.True(t, m.Available)
	assert.Equal(t, int64(0), m.FailureCount)
	assert.Nil(t, m.CooldownUntil)
	assert.NotNil(t, m.LastFailureAt, "failure history survives the reset")
}
