// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package market defines the value objects shared across the acquisition
// pipeline: price quotes, rate tables, metal spot prices, and the validation
// rules applied to them. Everything downstream of a source parser speaks
// these types.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// GramsPerTroyOunce converts troy-ounce spot prices to per-gram prices.
// Metal upstreams quote per troy ounce; zakat thresholds are in grams.
const GramsPerTroyOunce = 31.1034768

// PriceQuote is a single priced symbol. Metal quotes are USD per gram,
// equity quotes are in the exchange currency.
type PriceQuote struct {
	Symbol   string          `json:"symbol"`
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of"`

	// Source names the upstream that produced the value, or one of the
	// reserved names "fallback", "file-fallback", and "unavailable" when no
	// upstream did.
	Source string `json:"source"`

	// IsFallback is true whenever Value did not come from a live upstream
	// fetched during this request.
	IsFallback bool `json:"is_fallback"`

	// CacheSource is set when the value was served from a cache tier:
	// "memory" for a fresh hit, "emergency" for a stale entry served after
	// all live sources failed.
	CacheSource string `json:"cache_source,omitempty"`
}

// RateTable is a set of exchange rates relative to Base. Rates maps
// uppercase ISO 4217 codes to units of that currency per one unit of Base.
type RateTable struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
	AsOf  time.Time                  `json:"as_of"`

	Source      string `json:"source"`
	IsFallback  bool   `json:"is_fallback"`
	CacheSource string `json:"cache_source,omitempty"`
}

// Rate looks up the rate for a currency code, case-insensitively.
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	r, ok := t.Rates[normalizeCurrency(code)]
	return r, ok
}

// MetalPrices carries gold and silver spot prices from a single upstream
// response, both in USD per gram. One response must price both metals; a
// response pricing only one is rejected by validation.
type MetalPrices struct {
	Gold     decimal.Decimal `json:"gold"`
	Silver   decimal.Decimal `json:"silver"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of"`

	Source      string `json:"source"`
	IsFallback  bool   `json:"is_fallback"`
	CacheSource string `json:"cache_source,omitempty"`
}

// Complete reports whether both metals carry a positive price.
func (m MetalPrices) Complete() bool {
	return m.Gold.IsPositive() && m.Silver.IsPositive()
}

// Quote extracts a single-metal quote from the pair. symbol is "gold" or
// "silver"; anything else returns a zero quote.
func (m MetalPrices) Quote(symbol string) PriceQuote {
	q := PriceQuote{
		Symbol:      symbol,
		Currency:    m.Currency,
		AsOf:        m.AsOf,
		Source:      m.Source,
		IsFallback:  m.IsFallback,
		CacheSource: m.CacheSource,
	}
	switch symbol {
	case "gold":
		q.Value = m.Gold
	case "silver":
		q.Value = m.Silver
	}
	return q
}

// Params carries the request-specific inputs a source needs to build its
// HTTP request. Metals sources ignore it, rates sources read Base, equity
// sources read Symbol.
type Params struct {
	Symbol string
	Base   string
}

// Observation is the tagged result of parsing one upstream response.
// Exactly one of Metals, Rates, and Quote is non-nil, matching Kind.
type Observation struct {
	Kind   Kind
	Metals *MetalPrices
	Rates  *RateTable
	Quote  *PriceQuote
}

// AsOf returns the observation timestamp regardless of kind.
func (o Observation) AsOf() time.Time {
	switch {
	case o.Metals != nil:
		return o.Metals.AsOf
	case o.Rates != nil:
		return o.Rates.AsOf
	case o.Quote != nil:
		return o.Quote.AsOf
	default:
		return time.Time{}
	}
}
