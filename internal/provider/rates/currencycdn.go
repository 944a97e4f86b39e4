// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package rates implements the USD exchange-rate table sources. Parsers
// normalize currency codes to uppercase and emit tables based on USD.
package rates

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const (
	cdnPrimaryURL  = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json"
	cdnFallbackURL = "https://latest.currency-api.pages.dev/v1/currencies/usd.json"
)

// CDN reads the fawazahmed0 currency-api dataset, a daily snapshot of USD
// rates published to two CDNs. The jsdelivr copy is primary; the pages.dev
// mirror exists because jsdelivr outages took the primary down often enough
// to earn a second registration.
type CDN struct {
	name string
	url  string
}

// NewCDN creates the jsdelivr-hosted source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewCDN(baseURL string) *CDN {
	if baseURL == "" {
		baseURL = cdnPrimaryURL
	}
	return &CDN{name: "currency-cdn", url: baseURL}
}

// NewCDNFallback creates the pages.dev mirror source.
func NewCDNFallback(baseURL string) *CDN {
	if baseURL == "" {
		baseURL = cdnFallbackURL
	}
	return &CDN{name: "currency-cdn-fallback", url: baseURL}
}

func (s *CDN) Name() string      { return s.name }
func (s *CDN) Kind() market.Kind { return market.KindRates }

func (s *CDN) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
}

func (s *CDN) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		Date string                     `json:"date"`
		USD  map[string]decimal.Decimal `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding currency-api payload")
	}

	// The crowd-sourced dataset spans 300+ codes including crypto; a single
	// null or zero entry must not sink the whole table.
	table := make(map[string]decimal.Decimal, len(payload.USD))
	for code, v := range payload.USD {
		if !v.IsPositive() {
			continue
		}
		table[strings.ToUpper(code)] = v
	}
	if len(table) == 0 {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "currency-api payload has no usable rates")
	}

	rt := &market.RateTable{Base: "USD", Rates: table}
	if d, err := time.Parse("2006-01-02", payload.Date); err == nil {
		rt.AsOf = d.UTC()
	}
	return &market.Observation{Kind: market.KindRates, Rates: rt}, nil
}
