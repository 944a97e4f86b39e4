// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package market

import (
	"time"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

const (
	// DefaultClockSkew is how far past now an observation timestamp may sit
	// before it is rejected. A future-dated entry would otherwise never
	// expire from cache.
	DefaultClockSkew = 5 * time.Minute

	// DefaultMaxObservationAge bounds how old a live upstream response may
	// claim to be. Wide enough to tolerate weekend-stale metal closes,
	// narrow enough to reject a resurrected archive.
	DefaultMaxObservationAge = 7 * 24 * time.Hour
)

// bandTolerance widens every configured plausibility band by ±50% before a
// value is checked against it.
var bandTolerance = decimal.RequireFromString("0.5")

// Validator applies the acceptance rules every candidate value must pass
// before it enters the cache or reaches a caller: positive and finite,
// not future-dated, inside its plausibility band, and for metals complete
// across both gold and silver.
type Validator struct {
	bands  *BandSet
	skew   time.Duration
	maxAge time.Duration
}

// NewValidator builds a Validator backed by the embedded plausibility bands
// and the default skew and staleness bounds.
func NewValidator() (*Validator, error) {
	bands, err := LoadBands()
	if err != nil {
		return nil, err
	}
	return NewValidatorWith(bands, DefaultClockSkew, DefaultMaxObservationAge), nil
}

// NewValidatorWith builds a Validator with explicit bands and bounds.
// A nil bands set disables range checks; maxAge <= 0 disables the
// staleness bound.
func NewValidatorWith(bands *BandSet, skew, maxAge time.Duration) *Validator {
	return &Validator{bands: bands, skew: skew, maxAge: maxAge}
}

// Observation applies the full rule set for the observation's kind.
func (v *Validator) Observation(o *Observation, now time.Time) error {
	return v.observe(o, now, false)
}

// RelaxedObservation applies the reduced rule set used for the emergency
// cache and snapshot tiers: future-dated timestamps and implausible values
// are still rejected, the staleness bound is not enforced.
func (v *Validator) RelaxedObservation(o *Observation, now time.Time) error {
	return v.observe(o, now, true)
}

func (v *Validator) observe(o *Observation, now time.Time, relaxed bool) error {
	if o == nil {
		return zrerr.New(zrerr.CodeValidateValueImplausible, "nil observation")
	}
	switch {
	case o.Metals != nil:
		return v.metals(o.Metals, now, relaxed)
	case o.Rates != nil:
		return v.rates(o.Rates, now, relaxed)
	case o.Quote != nil:
		return v.quote(o.Quote, now, relaxed)
	default:
		return zrerr.Errorf(zrerr.CodeValidateValueImplausible,
			"observation of kind %s carries no payload", o.Kind)
	}
}

// Metals validates a gold/silver pair with the strict rule set.
func (v *Validator) Metals(m *MetalPrices, now time.Time) error {
	return v.metals(m, now, false)
}

// Rates validates a rate table with the strict rule set.
func (v *Validator) Rates(t *RateTable, now time.Time) error {
	return v.rates(t, now, false)
}

// Quote validates a single price quote with the strict rule set.
func (v *Validator) Quote(q *PriceQuote, now time.Time) error {
	return v.quote(q, now, false)
}

func (v *Validator) metals(m *MetalPrices, now time.Time, relaxed bool) error {
	if m == nil {
		return zrerr.New(zrerr.CodeValidateValueImplausible, "nil metal prices")
	}
	if err := v.checkTimestamp(m.AsOf, now, relaxed); err != nil {
		return zrerr.With(err, zrerr.FieldSource(m.Source))
	}

	// Both metals must be priced in the same response. A source that spot
	// checks only one is treated as a total failure for that source.
	if !m.Complete() {
		return zrerr.New(zrerr.CodeValidateMetalsIncomplete,
			"response must price both gold and silver with positive values",
			zrerr.FieldSource(m.Source),
			zrerr.Field("gold", m.Gold.String()),
			zrerr.Field("silver", m.Silver.String()),
		)
	}

	if err := v.checkMetalBand("gold", m.Gold, m.Source); err != nil {
		return err
	}
	return v.checkMetalBand("silver", m.Silver, m.Source)
}

func (v *Validator) rates(t *RateTable, now time.Time, relaxed bool) error {
	if t == nil {
		return zrerr.New(zrerr.CodeValidateValueImplausible, "nil rate table")
	}
	if err := v.checkTimestamp(t.AsOf, now, relaxed); err != nil {
		return zrerr.With(err, zrerr.FieldSource(t.Source))
	}
	if t.Base == "" || len(t.Rates) == 0 {
		return zrerr.New(zrerr.CodeValidateValueImplausible,
			"rate table has no base or no rates",
			zrerr.FieldSource(t.Source),
		)
	}

	for code, rate := range t.Rates {
		if !rate.IsPositive() {
			return zrerr.Errorf(zrerr.CodeValidateValueImplausible,
				"rate for %s is not positive: %s (source %s)", code, rate, t.Source)
		}
		if v.bands == nil {
			continue
		}
		band, ok := v.bands.RateBand(code)
		if !ok {
			continue
		}
		if !band.Contains(rate, bandTolerance) {
			return zrerr.New(zrerr.CodeValidateValueImplausible,
				"rate outside plausibility band",
				zrerr.FieldSource(t.Source),
				zrerr.FieldCurrency(code),
				zrerr.Field("value", rate.String()),
				zrerr.Field("band_min", band.Min.String()),
				zrerr.Field("band_max", band.Max.String()),
			)
		}
	}
	return nil
}

func (v *Validator) quote(q *PriceQuote, now time.Time, relaxed bool) error {
	if q == nil {
		return zrerr.New(zrerr.CodeValidateValueImplausible, "nil quote")
	}
	if err := v.checkTimestamp(q.AsOf, now, relaxed); err != nil {
		return zrerr.With(err, zrerr.FieldSource(q.Source), zrerr.FieldSymbol(q.Symbol))
	}
	if !q.Value.IsPositive() {
		return zrerr.New(zrerr.CodeValidateValueImplausible,
			"quote value must be positive",
			zrerr.FieldSource(q.Source),
			zrerr.FieldSymbol(q.Symbol),
			zrerr.Field("value", q.Value.String()),
		)
	}
	return v.checkMetalBand(q.Symbol, q.Value, q.Source)
}

// checkMetalBand range-checks symbols that have a configured metal band.
// Symbols without a band (equity tickers) pass.
func (v *Validator) checkMetalBand(symbol string, value decimal.Decimal, source string) error {
	if v.bands == nil {
		return nil
	}
	band, ok := v.bands.MetalBand(symbol)
	if !ok {
		return nil
	}
	if !band.Contains(value, bandTolerance) {
		return zrerr.New(zrerr.CodeValidateValueImplausible,
			"price outside plausibility band",
			zrerr.FieldSource(source),
			zrerr.FieldSymbol(symbol),
			zrerr.Field("value", value.String()),
			zrerr.Field("band_min", band.Min.String()),
			zrerr.Field("band_max", band.Max.String()),
		)
	}
	return nil
}

func (v *Validator) checkTimestamp(asOf, now time.Time, relaxed bool) error {
	if asOf.After(now.Add(v.skew)) {
		return zrerr.Errorf(zrerr.CodeValidateTimestampFuture,
			"timestamp %s is in the future (now %s, skew %s)",
			asOf.Format(time.RFC3339), now.Format(time.RFC3339), v.skew)
	}
	if relaxed || v.maxAge <= 0 {
		return nil
	}
	if !WithinAge(asOf, now, v.maxAge) {
		return zrerr.Errorf(zrerr.CodeValidateStalenessExceeded,
			"timestamp %s is older than %s", asOf.Format(time.RFC3339), v.maxAge)
	}
	return nil
}

// WithinAge reports whether asOf is no older than maxAge at now. A zero
// asOf is never within age.
func WithinAge(asOf, now time.Time, maxAge time.Duration) bool {
	if asOf.IsZero() {
		return false
	}
	return now.Sub(asOf) <= maxAge
}
