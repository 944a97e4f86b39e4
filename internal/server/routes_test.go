// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrabdussalam/zakat-rates/internal/cascade"
	"github.com/mrabdussalam/zakat-rates/internal/server"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

var quoteTime = time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)

// stubPrices serves fixed values shaped like a healthy live pipeline.
type stubPrices struct{}

func (stubPrices) Metals(_ context.Context) market.MetalPrices {
	return market.MetalPrices{
		Gold:     decimal.RequireFromString("93.98"),
		Silver:   decimal.RequireFromString("1.02"),
		Currency: "USD",
		AsOf:     quoteTime,
		Source:   "goldprice",
	}
}

func (stubPrices) Rates(_ context.Context) market.RateTable {
	return market.RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"SAR": decimal.RequireFromString("3.75"),
			"EUR": decimal.RequireFromString("0.92"),
		},
		AsOf:   quoteTime,
		Source: "frankfurter",
	}
}

func (stubPrices) Equity(_ context.Context, symbol string) market.PriceQuote {
	return market.PriceQuote{
		Symbol:   strings.ToUpper(symbol),
		Value:    decimal.RequireFromString("229.35"),
		Currency: "USD",
		AsOf:     quoteTime,
		Source:   "yahoo-chart",
	}
}

func (p stubPrices) Price(ctx context.Context, kind market.Kind, symbol, currency string) market.PriceQuote {
	var q market.PriceQuote
	switch kind {
	case market.KindMetals:
		q = p.Metals(ctx).Quote(strings.ToLower(symbol))
	case market.KindEquity:
		q = p.Equity(ctx, symbol)
	default:
		q = market.PriceQuote{
			Symbol: strings.ToUpper(symbol), Value: decimal.NewFromInt(1),
			Currency: strings.ToUpper(symbol), AsOf: quoteTime, Source: "frankfurter",
		}
	}
	if currency != "" && !strings.EqualFold(currency, q.Currency) {
		if rate, ok := p.Rates(ctx).Rate(currency); ok {
			q.Value = q.Value.Mul(rate)
			q.Currency = strings.ToUpper(currency)
		}
	}
	return q
}

func (p stubPrices) Convert(ctx context.Context, amount decimal.Decimal, from, to string) cascade.Conversion {
	table := p.Rates(ctx)
	result, ok := market.ConvertAmount(amount, from, to, table)
	conv := cascade.Conversion{
		Amount:    amount,
		From:      strings.ToUpper(from),
		To:        strings.ToUpper(to),
		Result:    result,
		Converted: ok,
		Source:    table.Source,
	}
	if !ok {
		conv.Source = market.SourceUnavailable
		conv.IsFallback = true
	}
	return conv
}

type stubStatus struct{}

func (stubStatus) BreakerMetrics() map[string]health.Metrics {
	return map[string]health.Metrics{
		"metals": {Available: true},
		"rates":  {Available: true},
		"equity": {FailureCount: 2, Available: true},
	}
}

func (stubStatus) CacheSizes() map[string]int {
	return map[string]int{"metals": 1, "rates": 1, "equity": 0}
}

func (stubStatus) Sources(kind market.Kind) []string {
	switch kind {
	case market.KindMetals:
		return []string{"goldprice", "metals-live", "stooq"}
	case market.KindRates:
		return []string{"currency-cdn", "frankfurter"}
	case market.KindEquity:
		return []string{"yahoo-chart"}
	default:
		return nil
	}
}

type stubQuota struct {
	used, limit int64
}

func (q stubQuota) Usage() (string, int64, int64, error) {
	return "2026-08", q.used, q.limit, nil
}

func newTestServerWithData(t *testing.T) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	svc, err := server.NewServices(stubPrices{}, stubStatus{})
	require.NoError(t, err)
	srv.RegisterServices(svc)
	return srv
}

func newTestServerWithQuota(t *testing.T, quota server.QuotaService) *server.Server {
	t.Helper()
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	svc, err := server.NewServices(stubPrices{}, stubStatus{}, quota)
	require.NoError(t, err)
	srv.RegisterServices(svc)
	return srv
}

func get(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestRoutes_GetPrice_Gold(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/prices/metals/gold")
	require.Equal(t, http.StatusOK, w.Code)

	var q market.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, "gold", q.Symbol)
	assert.True(t, q.Value.Equal(decimal.RequireFromString("93.98")), "got %s", q.Value)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "goldprice", q.Source)
	assert.False(t, q.IsFallback)
}

func TestRoutes_GetPrice_ConvertsCurrency(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/prices/metals/gold?currency=SAR")
	require.Equal(t, http.StatusOK, w.Code)

	var q market.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, "SAR", q.Currency)
	assert.True(t, q.Value.Equal(decimal.RequireFromString("352.425")), "got %s", q.Value)
}

func TestRoutes_GetPrice_Equity(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/prices/equity/AAPL")
	require.Equal(t, http.StatusOK, w.Code)

	var q market.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "yahoo-chart", q.Source)
}

func TestRoutes_GetPrice_InvalidKind(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/prices/crypto/btc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid market data kind")
}

func TestRoutes_GetMetals(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/metals")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Gold   market.PriceQuote `json:"gold"`
		Silver market.PriceQuote `json:"silver"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Gold.Value.Equal(decimal.RequireFromString("93.98")))
	assert.True(t, body.Silver.Value.Equal(decimal.RequireFromString("1.02")))
	assert.Equal(t, "gold", body.Gold.Symbol)
	assert.Equal(t, "silver", body.Silver.Symbol)
}

func TestRoutes_GetMetals_ConvertsCurrency(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/metals?currency=EUR")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Gold   market.PriceQuote `json:"gold"`
		Silver market.PriceQuote `json:"silver"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "EUR", body.Gold.Currency)
	assert.Equal(t, "EUR", body.Silver.Currency)

	wantGold := decimal.RequireFromString("93.98").Mul(decimal.RequireFromString("0.92"))
	assert.True(t, body.Gold.Value.Equal(wantGold), "got %s", body.Gold.Value)
}

func TestRoutes_GetRates_SameBase(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/rates/USD")
	require.Equal(t, http.StatusOK, w.Code)

	var table market.RateTable
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &table))
	assert.Equal(t, "USD", table.Base)
	assert.Equal(t, "frankfurter", table.Source)

	sar, ok := table.Rate("SAR")
	require.True(t, ok)
	assert.True(t, sar.Equal(decimal.RequireFromString("3.75")))
}

func TestRoutes_GetRates_Rebased(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/rates/sar")
	require.Equal(t, http.StatusOK, w.Code)

	var table market.RateTable
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &table))
	assert.Equal(t, "SAR", table.Base)

	sar, ok := table.Rate("SAR")
	require.True(t, ok)
	assert.True(t, sar.Equal(decimal.NewFromInt(1)), "got %s", sar)

	usd, ok := table.Rate("USD")
	require.True(t, ok)
	wantUSD := decimal.NewFromInt(1).Div(decimal.RequireFromString("3.75"))
	assert.True(t, usd.Equal(wantUSD), "got %s", usd)
}

func TestRoutes_GetRates_UnknownBase(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/rates/ZZZ")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no rate for base currency")
}

func TestRoutes_Convert(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/convert?amount=100&from=USD&to=SAR")
	require.Equal(t, http.StatusOK, w.Code)

	var conv cascade.Conversion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.True(t, conv.Converted)
	assert.True(t, conv.Result.Equal(decimal.NewFromInt(375)), "got %s", conv.Result)
	assert.Equal(t, "frankfurter", conv.Source)
	assert.False(t, conv.IsFallback)
}

func TestRoutes_Convert_UnknownPair(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/convert?amount=100&from=USD&to=ZZZ")
	require.Equal(t, http.StatusOK, w.Code)

	var conv cascade.Conversion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.False(t, conv.Converted)
	assert.Equal(t, market.SourceUnavailable, conv.Source)
	assert.True(t, conv.Result.Equal(decimal.NewFromInt(100)), "amount must pass through unchanged")
}

func TestRoutes_Convert_BadAmount(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/convert?amount=abc&from=USD&to=SAR")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a decimal number")
}

func TestRoutes_Convert_MissingParams(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/convert?from=USD&to=SAR")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoutes_Status(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string                    `json:"status"`
		Breakers map[string]health.Metrics `json:"breakers"`
		Caches   map[string]int            `json:"caches"`
		Sources  map[string][]string       `json:"sources"`
		Quota    *server.QuotaStatus       `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Breakers, 3)
	assert.True(t, body.Breakers["metals"].Available)
	assert.Equal(t, int64(2), body.Breakers["equity"].FailureCount)
	assert.Equal(t, 1, body.Caches["rates"])
	assert.Equal(t, []string{"goldprice", "metals-live", "stooq"}, body.Sources["metals"])
	assert.Nil(t, body.Quota, "quota must be absent when no source is metered")
}

func TestRoutes_Status_WithQuota(t *testing.T) {
	srv := newTestServerWithQuota(t, stubQuota{used: 42, limit: 100})

	w := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Quota *server.QuotaStatus `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Quota)
	assert.Equal(t, "2026-08", body.Quota.Month)
	assert.Equal(t, int64(42), body.Quota.Used)
	assert.Equal(t, int64(100), body.Quota.Limit)
}

func TestRoutes_ListSources(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/sources")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sources []server.SourceSummary `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sources, 6)
	assert.Equal(t, server.SourceSummary{Name: "goldprice", Kind: market.KindMetals}, body.Sources[0])
	assert.Equal(t, server.SourceSummary{Name: "yahoo-chart", Kind: market.KindEquity}, body.Sources[5])
}

func TestRoutes_GetSource(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/sources/frankfurter")
	require.Equal(t, http.StatusOK, w.Code)

	var detail server.SourceDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "frankfurter", detail.Name)
	assert.Equal(t, market.KindRates, detail.Kind)
	assert.True(t, detail.Breaker.Available)
}

func TestRoutes_GetSource_NotFound(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/api/v1/sources/nonexistent")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestServer_OpenAPIIncludesPipelineRoutes(t *testing.T) {
	srv := newTestServerWithData(t)

	w := get(t, srv, "/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "/api/v1/prices/{kind}/{symbol}")
	assert.Contains(t, body, "convert-amount")
	assert.Contains(t, body, "pipeline-status")
	assert.Contains(t, body, "/api/v1/sources/{name}")
}
