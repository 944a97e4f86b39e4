// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package cascade

import (
	"context"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// retry runs fn up to attempts times, doubling the delay between tries
// starting from base. A spent budget never retries, and a canceled sleep
// returns whatever fn last reported.
func retry(ctx context.Context, attempts int, base time.Duration, sleep func(context.Context, time.Duration) error, fn func() (*market.Observation, error)) (*market.Observation, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := base
	for i := range attempts {
		obs, err := fn()
		if err == nil {
			return obs, nil
		}
		lastErr = err

		if zrerr.IsBudgetExceeded(err) {
			return nil, err
		}
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
		delay *= 2
	}
	return nil, lastErr
}
