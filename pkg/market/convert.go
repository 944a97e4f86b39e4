// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ConvertAmount converts amount between two currency codes using table.
// The algorithm is two multiplications through the table's base: from→base
// via amount/rates[from], then base→to via ×rates[to], with identity steps
// when either side already is the base. Same-currency requests short-circuit
// without consulting the table.
//
// The boolean result is false when either code is absent from the table or
// carries a non-positive rate; in that case amount is returned unchanged and
// the caller decides whether to fall through to another table or keep the
// unconverted value.
func ConvertAmount(amount decimal.Decimal, from, to string, table RateTable) (decimal.Decimal, bool) {
	from = normalizeCurrency(from)
	to = normalizeCurrency(to)
	if from == to {
		return amount, true
	}

	base := normalizeCurrency(table.Base)
	inBase := amount
	if from != base {
		rate, ok := table.Rate(from)
		if !ok || !rate.IsPositive() {
			return amount, false
		}
		inBase = amount.Div(rate)
	}

	if to == base {
		return inBase, true
	}
	rate, ok := table.Rate(to)
	if !ok || !rate.IsPositive() {
		return amount, false
	}
	return inBase.Mul(rate), true
}

// Rebase re-expresses table against a different base currency: every rate is
// divided by the requested base's rate, and the old base appears in the result
// with the inverted pivot rate. Provenance fields (AsOf, Source, fallback
// tags) carry over unchanged.
//
// The boolean result is false when the requested base is absent from the
// table or non-positive; the input table is then returned as is.
func Rebase(table RateTable, base string) (RateTable, bool) {
	base = normalizeCurrency(base)
	if base == "" {
		return table, false
	}
	if base == normalizeCurrency(table.Base) {
		return table, true
	}

	pivot, ok := table.Rate(base)
	if !ok || !pivot.IsPositive() {
		return table, false
	}

	rates := make(map[string]decimal.Decimal, len(table.Rates)+1)
	for code, rate := range table.Rates {
		rates[normalizeCurrency(code)] = rate.Div(pivot)
	}
	rates[normalizeCurrency(table.Base)] = decimal.NewFromInt(1).Div(pivot)

	out := table
	out.Base = base
	out.Rates = rates
	return out, true
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
