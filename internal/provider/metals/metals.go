// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package metals implements the gold and silver spot-price sources. Every
// upstream quotes troy ounces; parsers normalize to USD per gram before
// handing the observation back, so nothing downstream ever sees ounces.
package metals

import (
	"github.com/shopspring/decimal"

	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

var (
	gramsPerOunce = decimal.NewFromFloat(market.GramsPerTroyOunce)
	one           = decimal.NewFromInt(1)
)

// perGram converts a troy-ounce price to a per-gram price.
func perGram(perOunce decimal.Decimal) decimal.Decimal {
	return perOunce.Div(gramsPerOunce)
}
