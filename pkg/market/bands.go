// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package market

import (
	_ "embed"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

//go:embed bands.yaml
var bandsYAML []byte

// bandsFile is the top-level structure of bands.yaml.
type bandsFile struct {
	Version int            `yaml:"version"`
	Metals  []metalBandRow `yaml:"metals"`
	Rates   []rateBandRow  `yaml:"rates"`
}

type metalBandRow struct {
	Symbol string  `yaml:"symbol"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

type rateBandRow struct {
	Code string  `yaml:"code"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// Band is an expected numeric range for one symbol or currency pair.
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether v falls inside the band after widening both
// edges by tolerance (0.5 widens [min,max] to [min/2, max*1.5]).
func (b Band) Contains(v decimal.Decimal, tolerance decimal.Decimal) bool {
	one := decimal.NewFromInt(1)
	lo := b.Min.Mul(one.Sub(tolerance))
	hi := b.Max.Mul(one.Add(tolerance))
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}

// BandSet holds the loaded plausibility bands, keyed by lowercase metal
// symbol and uppercase currency code. Unknown keys have no band and are
// not range-checked.
type BandSet struct {
	metals map[string]Band
	rates  map[string]Band
}

// MetalBand returns the band for a metal symbol ("gold", "silver").
func (s *BandSet) MetalBand(symbol string) (Band, bool) {
	b, ok := s.metals[strings.ToLower(symbol)]
	return b, ok
}

// RateBand returns the band for a currency code relative to USD.
func (s *BandSet) RateBand(code string) (Band, bool) {
	b, ok := s.rates[normalizeCurrency(code)]
	return b, ok
}

var (
	bandsOnce   sync.Once
	loadedBands *BandSet
	bandsErr    error
)

// LoadBands parses the embedded bands.yaml once and returns the shared
// BandSet. Any malformed row fails the whole load: a validator running with
// partial bands would silently accept values the missing bands were meant
// to reject.
func LoadBands() (*BandSet, error) {
	bandsOnce.Do(func() {
		var f bandsFile
		if err := yaml.Unmarshal(bandsYAML, &f); err != nil {
			bandsErr = zrerr.Errorf(zrerr.CodeBandsParseInvalidFormat,
				"parsing plausibility bands YAML: %w", err)
			return
		}

		set := &BandSet{
			metals: make(map[string]Band, len(f.Metals)),
			rates:  make(map[string]Band, len(f.Rates)),
		}

		var badRows []string
		for _, row := range f.Metals {
			key := strings.ToLower(strings.TrimSpace(row.Symbol))
			band, err := newBand(row.Min, row.Max)
			if err != nil || key == "" {
				badRows = append(badRows, "metals/"+row.Symbol)
				continue
			}
			if _, dup := set.metals[key]; dup {
				slog.Warn("duplicate metal band, skipping", "symbol", key)
				continue
			}
			set.metals[key] = band
		}
		for _, row := range f.Rates {
			key := normalizeCurrency(row.Code)
			band, err := newBand(row.Min, row.Max)
			if err != nil || key == "" {
				badRows = append(badRows, "rates/"+row.Code)
				continue
			}
			if _, dup := set.rates[key]; dup {
				slog.Warn("duplicate rate band, skipping", "code", key)
				continue
			}
			set.rates[key] = band
		}

		if len(badRows) > 0 {
			bandsErr = zrerr.Errorf(zrerr.CodeBandsParseInvalidFormat,
				"%d invalid band row(s): %v", len(badRows), badRows)
			return
		}
		if len(set.metals) == 0 || len(set.rates) == 0 {
			bandsErr = zrerr.Errorf(zrerr.CodeBandsParseInvalidFormat,
				"bands file loaded empty (metals=%d rates=%d)", len(set.metals), len(set.rates))
			return
		}

		loadedBands = set
	})

	if bandsErr != nil {
		return nil, bandsErr
	}
	return loadedBands, nil
}

func newBand(min, max float64) (Band, error) {
	if min <= 0 || max <= min {
		return Band{}, zrerr.Errorf(zrerr.CodeBandsParseInvalidFormat,
			"band bounds must satisfy 0 < min < max, got [%v, %v]", min, max)
	}
	return Band{Min: decimal.NewFromFloat(min), Max: decimal.NewFromFloat(max)}, nil
}
