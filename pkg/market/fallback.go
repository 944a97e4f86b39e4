// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceFallback tags values produced by the hardcoded-constant tier.
// SourceFileFallback tags values restored from the durable snapshot file.
// SourceUnavailable tags zero-value equity quotes when no tier could price
// the symbol. CacheSourceMemory marks a fresh cache hit;
// CacheSourceEmergency marks a value served from cache past its TTL but
// inside the emergency bound.
const (
	SourceFallback       = "fallback"
	SourceFileFallback   = "file-fallback"
	SourceUnavailable    = "unavailable"
	CacheSourceMemory    = "memory"
	CacheSourceEmergency = "emergency"
)

// Last-known-good metal prices in USD per gram. These are the absolute floor
// of the cascade: returned only when live sources, both cache tiers, and the
// snapshot file have all failed.
var (
	FallbackGoldPerGram   = decimal.RequireFromString("93.98")
	FallbackSilverPerGram = decimal.RequireFromString("1.02")
)

// hardcodedUSDRates is the last-resort bilateral rate table, expressed as
// units per 1 USD. Pegged currencies (SAR, AED, QAR, BHD, OMR, JOD) are
// exact; the rest are periodically refreshed snapshots. A pair missing here
// makes conversion return the amount unchanged.
var hardcodedUSDRates = map[string]decimal.Decimal{
	"EUR": decimal.RequireFromString("0.93"),
	"GBP": decimal.RequireFromString("0.79"),
	"SAR": decimal.RequireFromString("3.75"),
	"AED": decimal.RequireFromString("3.6725"),
	"QAR": decimal.RequireFromString("3.64"),
	"KWD": decimal.RequireFromString("0.3065"),
	"BHD": decimal.RequireFromString("0.376"),
	"OMR": decimal.RequireFromString("0.3845"),
	"JOD": decimal.RequireFromString("0.709"),
	"PKR": decimal.RequireFromString("278.50"),
	"INR": decimal.RequireFromString("83.10"),
	"BDT": decimal.RequireFromString("117.50"),
	"IDR": decimal.RequireFromString("15850"),
	"MYR": decimal.RequireFromString("4.47"),
	"TRY": decimal.RequireFromString("34.20"),
	"EGP": decimal.RequireFromString("48.50"),
	"CAD": decimal.RequireFromString("1.36"),
	"AUD": decimal.RequireFromString("1.50"),
	"CHF": decimal.RequireFromString("0.88"),
	"JPY": decimal.RequireFromString("147.80"),
	"CNY": decimal.RequireFromString("7.12"),
}

// FallbackMetals returns the hardcoded metal price floor stamped at asOf.
func FallbackMetals(asOf time.Time) MetalPrices {
	return MetalPrices{
		Gold:       FallbackGoldPerGram,
		Silver:     FallbackSilverPerGram,
		Currency:   "USD",
		AsOf:       asOf,
		Source:     SourceFallback,
		IsFallback: true,
	}
}

// FallbackRates returns the hardcoded USD-based rate table stamped at asOf.
// The map is copied so callers can't mutate the package table.
func FallbackRates(asOf time.Time) RateTable {
	rates := make(map[string]decimal.Decimal, len(hardcodedUSDRates)+1)
	for code, rate := range hardcodedUSDRates {
		rates[code] = rate
	}
	rates["USD"] = decimal.NewFromInt(1)

	return RateTable{
		Base:       "USD",
		Rates:      rates,
		AsOf:       asOf,
		Source:     SourceFallback,
		IsFallback: true,
	}
}
