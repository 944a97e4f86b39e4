// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package rates_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrabdussalam/zakat-rates/internal/provider"
	"github.com/mrabdussalam/zakat-rates/internal/provider/rates"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// Compile-time interface satisfaction checks.
var (
	_ provider.Source = (*rates.CDN)(nil)
	_ provider.Source = (*rates.Frankfurter)(nil)
	_ provider.Source = (*rates.OpenERAPI)(nil)
)

// ---------------------------------------------------------------------------
// currency-cdn
// ---------------------------------------------------------------------------

func TestCDN_Names(t *testing.T) {
	assert.Equal(t, "currency-cdn", rates.NewCDN("").Name())
	assert.Equal(t, "currency-cdn-fallback", rates.NewCDNFallback("").Name())
	assert.Equal(t, market.KindRates, rates.NewCDN("").Kind())
}

func TestCDN_BuildRequestTargetsDistinctHosts(t *testing.T) {
	primary, err := rates.NewCDN("").BuildRequest(context.Background(), market.Params{})
	require.NoError(t, err)
	mirror, err := rates.NewCDNFallback("").BuildRequest(context.Background(), market.Params{})
	require.NoError(t, err)

	assert.Equal(t, "cdn.jsdelivr.net", primary.URL.Host)
	assert.Equal(t, "latest.currency-api.pages.dev", mirror.URL.Host)
}

func TestCDN_Parse(t *testing.T) {
	body := []byte(`{
		"date": "2026-08-25",
		"usd": {
			"eur": 0.93,
			"gbp": 0.79,
			"sar": 3.75,
			"pkr": 278.50,
			"btc": 0.0000089
		}
	}`)

	obs, err := rates.NewCDN("").Parse(body)
	require.NoError(t, err)
	require.NotNil(t, obs.Rates)

	assert.Equal(t, "USD", obs.Rates.Base)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), obs.Rates.AsOf)

	sar, ok := obs.Rates.Rate("SAR")
	require.True(t, ok, "codes must be uppercased")
	assert.True(t, decimal.RequireFromString("3.75").Equal(sar))

	// The full table should survive, crypto entries included.
	_, ok = obs.Rates.Rate("BTC")
	assert.True(t, ok)
}

func TestCDN_ParseDropsNonPositiveEntries(t *testing.T) {
	body := []byte(`{
		"date": "2026-08-25",
		"usd": {"eur": 0.93, "xyz": 0, "abc": -2}
	}`)

	obs, err := rates.NewCDN("").Parse(body)
	require.NoError(t, err)

	_, ok := obs.Rates.Rate("XYZ")
	assert.False(t, ok)
	_, ok = obs.Rates.Rate("ABC")
	assert.False(t, ok)
	_, ok = obs.Rates.Rate("EUR")
	assert.True(t, ok)
}

func TestCDN_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `Couldn't find the requested release version latest.`},
		{"empty table", `{"date": "2026-08-25", "usd": {}}`},
		{"all unusable", `{"date": "2026-08-25", "usd": {"xyz": 0}}`},
		{"missing usd", `{"date": "2026-08-25"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rates.NewCDN("").Parse([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchParseInvalidFormat),
				"expected %s, got %s", zrerr.CodeFetchParseInvalidFormat, zrerr.CodeOf(err))
		})
	}
}

// ---------------------------------------------------------------------------
// frankfurter
// ---------------------------------------------------------------------------

func TestFrankfurter_BuildRequest(t *testing.T) {
	req, err := rates.NewFrankfurter("").BuildRequest(context.Background(), market.Params{})
	require.NoError(t, err)
	assert.Equal(t, "api.frankfurter.dev", req.URL.Host)
	assert.Equal(t, "USD", req.URL.Query().Get("base"))
}

func TestFrankfurter_Parse(t *testing.T) {
	body := []byte(`{
		"amount": 1.0,
		"base": "USD",
		"date": "2026-08-21",
		"rates": {"EUR": 0.93, "GBP": 0.79, "CHF": 0.88}
	}`)

	obs, err := rates.NewFrankfurter("").Parse(body)
	require.NoError(t, err)
	require.NotNil(t, obs.Rates)

	assert.Equal(t, "USD", obs.Rates.Base)
	assert.Empty(t, obs.Rates.Source, "fetcher stamps attribution")
	assert.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), obs.Rates.AsOf)

	eur, ok := obs.Rates.Rate("eur")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.93").Equal(eur))
}

func TestFrankfurter_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<!DOCTYPE html>`},
		{"wrong base", `{"base": "EUR", "date": "2026-08-21", "rates": {"USD": 1.07}}`},
		{"empty rates", `{"base": "USD", "date": "2026-08-21", "rates": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rates.NewFrankfurter("").Parse([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchParseInvalidFormat),
				"expected %s, got %s", zrerr.CodeFetchParseInvalidFormat, zrerr.CodeOf(err))
		})
	}
}

// ---------------------------------------------------------------------------
// open-er-api
// ---------------------------------------------------------------------------

func TestOpenERAPI_Parse(t *testing.T) {
	body := []byte(`{
		"result": "success",
		"time_last_update_unix": 1756080002,
		"base_code": "USD",
		"rates": {"USD": 1, "EUR": 0.93, "AED": 3.6725}
	}`)

	obs, err := rates.NewOpenERAPI("").Parse(body)
	require.NoError(t, err)
	require.NotNil(t, obs.Rates)

	assert.Equal(t, "USD", obs.Rates.Base)
	assert.Equal(t, time.Unix(1756080002, 0).UTC(), obs.Rates.AsOf)

	aed, ok := obs.Rates.Rate("AED")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("3.6725").Equal(aed))
}

func TestOpenERAPI_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `upstream error`},
		{"reported error", `{"result": "error", "error-type": "invalid-key"}`},
		{"wrong base", `{"result": "success", "base_code": "EUR", "rates": {"USD": 1.07}}`},
		{"empty rates", `{"result": "success", "base_code": "USD", "rates": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rates.NewOpenERAPI("").Parse([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchParseInvalidFormat),
				"expected %s, got %s", zrerr.CodeFetchParseInvalidFormat, zrerr.CodeOf(err))
		})
	}
}

// A parsed table must be able to drive the documented conversion path:
// 100 USD at 3.75 SAR/USD is 375 SAR.
func TestParsedTableDrivesConversion(t *testing.T) {
	body := []byte(`{"date": "2026-08-25", "usd": {"sar": 3.75, "eur": 0.93}}`)

	obs, err := rates.NewCDN("").Parse(body)
	require.NoError(t, err)

	got, ok := market.ConvertAmount(decimal.NewFromInt(100), "USD", "SAR", *obs.Rates)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(375).Equal(got), "want 375, got %s", got)
}
