// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package health defines the shared breaker-state snapshot type reported by
// the source registry and exposed through the status endpoint.
package health

import "time"

// Metrics is a point-in-time snapshot of a circuit breaker's failure state.
type Metrics struct {
	// FailureCount is the number of consecutive failures recorded since the
	// breaker last closed.
	FailureCount int64 `json:"failure_count"`

	// LastFailureAt is when the most recent failure was recorded, nil if the
	// breaker has never seen a failure.
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`

	// CooldownUntil is when an open breaker admits traffic again, nil while
	// the breaker is closed.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`

	// Available reports whether requests are currently admitted.
	Available bool `json:"available"`
}
