// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package provider implements the upstream source machinery: the Source
// descriptor interface, the per-kind registry with load-spreading orderings,
// the per-kind circuit breakers, and the fetcher that turns one source
// attempt into a normalized observation or a typed failure.
package provider

import (
	"context"
	"net/http"

	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// Source describes one upstream endpoint: how to build its HTTP request and
// how to parse its response body. Descriptors are static configuration,
// registered once at wiring time and never mutated afterwards.
type Source interface {
	// Name uniquely identifies the source in logs, metrics, and quote
	// attribution.
	Name() string

	// Kind is the market data class this source serves.
	Kind() market.Kind

	// BuildRequest constructs the GET request for one fetch attempt. The
	// request must carry ctx so the fetcher's timeout applies.
	BuildRequest(ctx context.Context, p market.Params) (*http.Request, error)

	// Parse turns a 2xx response body into a normalized observation.
	// Upstream bodies are untyped JSON or CSV; a missing field is a parse
	// failure, not a zero value.
	Parse(body []byte) (*market.Observation, error)
}
