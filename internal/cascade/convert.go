// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package cascade

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// batchConcurrency bounds the fan-out of ConvertBatch.
const batchConcurrency = 4

// Conversion is one currency-conversion result. Converted is false when no
// rate table, live or hardcoded, covers the pair; Result then carries the
// input amount unchanged.
type Conversion struct {
	Amount     decimal.Decimal `json:"amount"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Result     decimal.Decimal `json:"result"`
	Converted  bool            `json:"converted"`
	Source     string          `json:"source"`
	IsFallback bool            `json:"is_fallback"`
}

// Convert re-denominates amount from one currency into another. Like every
// cascade read it cannot fail; an uncovered pair comes back unconverted.
func (c *Cascade) Convert(ctx context.Context, amount decimal.Decimal, from, to string) Conversion {
	return c.convertWithTables(amount, from, to, c.Rates(ctx), market.FallbackRates(c.nowFunc()))
}

// ConvertBatch converts amount into every target currency using a single
// rate-table read shared across the batch. Results line up with targets.
func (c *Cascade) ConvertBatch(ctx context.Context, amount decimal.Decimal, from string, targets []string) []Conversion {
	live := c.Rates(ctx)
	hard := market.FallbackRates(c.nowFunc())

	results := make([]Conversion, len(targets))
	sem := make(chan struct{}, batchConcurrency)
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.convertWithTables(amount, from, to, live, hard)
		}()
	}
	wg.Wait()
	return results
}

func (c *Cascade) convertWithTables(amount decimal.Decimal, from, to string, live, hard market.RateTable) Conversion {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	conv := Conversion{Amount: amount, From: from, To: to, Result: amount}

	if result, ok := market.ConvertAmount(amount, from, to, live); ok {
		conv.Result = result
		conv.Converted = true
		conv.Source = live.Source
		conv.IsFallback = live.IsFallback
		return conv
	}
	if result, ok := market.ConvertAmount(amount, from, to, hard); ok {
		conv.Result = result
		conv.Converted = true
		conv.Source = hard.Source
		conv.IsFallback = true
		return conv
	}

	c.logger.Warn("no conversion path for pair", "from", from, "to", to)
	conv.Source = market.SourceUnavailable
	conv.IsFallback = true
	return conv
}

// convertQuote re-denominates q into target when a conversion path exists.
// Without one the quote stays in its native currency.
func (c *Cascade) convertQuote(ctx context.Context, q market.PriceQuote, target string) market.PriceQuote {
	target = strings.ToUpper(strings.TrimSpace(target))
	if target == "" || target == strings.ToUpper(q.Currency) || !q.Value.IsPositive() {
		return q
	}

	t := c.Rates(ctx)
	if v, ok := market.ConvertAmount(q.Value, q.Currency, target, t); ok {
		q.Value = v
		q.Currency = target
		if t.IsFallback {
			q.IsFallback = true
		}
		return q
	}
	if v, ok := market.ConvertAmount(q.Value, q.Currency, target, market.FallbackRates(c.nowFunc())); ok {
		q.Value = v
		q.Currency = target
		q.IsFallback = true
		return q
	}

	c.logger.Warn("no conversion path, quote keeps native currency",
		"currency", q.Currency, "target", target)
	return q
}
