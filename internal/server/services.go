// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package server

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mrabdussalam/zakat-rates/internal/cascade"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// PriceService serves prices and conversions to REST handlers. Implemented
// by cascade.Cascade. Calls never fail; a degraded answer carries fallback
// tags instead of an error.
type PriceService interface {
	Metals(ctx context.Context) market.MetalPrices
	Rates(ctx context.Context) market.RateTable
	Equity(ctx context.Context, symbol string) market.PriceQuote
	Price(ctx context.Context, kind market.Kind, symbol, currency string) market.PriceQuote
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) cascade.Conversion
}

// StatusService reports pipeline internals for the status and source
// endpoints.
type StatusService interface {
	BreakerMetrics() map[string]health.Metrics
	CacheSizes() map[string]int
	Sources(kind market.Kind) []string
}

// QuotaService reports metered-source budget usage. Optional; absent when no
// source is metered.
type QuotaService interface {
	Usage() (month string, used, limit int64, err error)
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use the NewServices constructor to ensure required services are provided.
type Services struct {
	prices PriceService
	status StatusService
	quota  QuotaService // optional; nil = no metered source configured
}

// NewServices creates a Services instance with validation.
// The optional quota variadic parameter sets the budget usage service.
func NewServices(prices PriceService, status StatusService, quota ...QuotaService) (*Services, error) {
	if prices == nil {
		return nil, zrerr.New(zrerr.CodeServerConfigInvalid, "price service is required")
	}
	if status == nil {
		return nil, zrerr.New(zrerr.CodeServerConfigInvalid, "status service is required")
	}
	if len(quota) > 1 {
		return nil, zrerr.New(zrerr.CodeServerConfigInvalid, "at most one quota service may be supplied")
	}
	s := &Services{
		prices: prices,
		status: status,
	}
	if len(quota) > 0 && quota[0] != nil {
		s.quota = quota[0]
	}
	return s, nil
}

// Prices returns the price service.
func (s *Services) Prices() PriceService {
	return s.prices
}

// Status returns the status service.
func (s *Services) Status() StatusService {
	return s.status
}

// Quota returns the optional quota service, nil when no source is metered.
func (s *Services) Quota() QuotaService {
	return s.quota
}

// SourceSummary is the REST representation of a registered source.
type SourceSummary struct {
	Name string      `json:"name" doc:"Source name"`
	Kind market.Kind `json:"kind" doc:"Market data kind (metals, rates, equity)"`
}

// SourceDetail adds the circuit state governing the source's kind. Breakers
// trip per kind, not per source, so every source of a kind shares one state.
type SourceDetail struct {
	Name    string         `json:"name" doc:"Source name"`
	Kind    market.Kind    `json:"kind" doc:"Market data kind"`
	Breaker health.Metrics `json:"breaker" doc:"Circuit state for the source's kind"`
}

// QuotaStatus reports a metered source's month-to-date usage.
type QuotaStatus struct {
	Month string `json:"month" doc:"Billing month (YYYY-MM)"`
	Used  int64  `json:"used" doc:"Requests spent this month"`
	Limit int64  `json:"limit" doc:"Monthly request allowance"`
}
