// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrabdussalam/zakat-rates/internal/httpx"
	"github.com/mrabdussalam/zakat-rates/internal/provider"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

func newTestFetcher(t *testing.T) *provider.Fetcher {
	t.Helper()
	f, err := provider.NewFetcher(httpx.New(30*time.Second), 5*time.Second)
	require.NoError(t, err)
	return f
}

func TestClampFetchTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, provider.MinFetchTimeout},
		{3 * time.Second, provider.MinFetchTimeout},
		{5 * time.Second, 5 * time.Second},
		{10 * time.Second, 10 * time.Second},
		{15 * time.Second, 15 * time.Second},
		{30 * time.Second, provider.MaxFetchTimeout},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, provider.ClampFetchTimeout(tt.in), "input %s", tt.in)
	}
}

func TestNewFetcherValidation(t *testing.T) {
	_, err := provider.NewFetcher(nil, 10*time.Second)
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeConfigValidateInvalidValue),
		"expected %s, got %s", zrerr.CodeConfigValidateInvalidValue, zrerr.CodeOf(err))

	f, err := provider.NewFetcher(httpx.New(30*time.Second), time.Second)
	require.NoError(t, err)
	assert.Equal(t, provider.MinFetchTimeout, f.Timeout())
}

func TestFetcherStampsObservation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"gold": 93.98}`))
	}))
	defer srv.Close()

	var gotBody []byte
	src := &fakeSource{
		name: "goldprice",
		kind: market.KindMetals,
		url:  srv.URL,
		parseFn: func(body []byte) (*market.Observation, error) {
			gotBody = body
			return &market.Observation{
				Metals: &market.MetalPrices{
					Gold:   decimal.RequireFromString("93.98"),
					Silver: decimal.RequireFromString("1.02"),
				},
			}, nil
		},
	}

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := newTestFetcher(t)
	f.SetNowFunc(func() time.Time { return now })

	obs, err := f.Fetch(context.Background(), src, market.Params{})
	require.NoError(t, err)
	require.NotNil(t, obs.Metals)

	assert.Equal(t, `{"gold": 93.98}`, string(gotBody))
	assert.Equal(t, market.KindMetals, obs.Kind)
	assert.Equal(t, "goldprice", obs.Metals.Source)
	assert.Equal(t, now, obs.Metals.AsOf)
	assert.Equal(t, "USD", obs.Metals.Currency)
}

func TestFetcherKeepsParserAttribution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	upstream := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	src := &fakeSource{
		name: "frankfurter",
		kind: market.KindRates,
		url:  srv.URL,
		parseFn: func([]byte) (*market.Observation, error) {
			return &market.Observation{
				Kind: market.KindRates,
				Rates: &market.RateTable{
					Base:   "USD",
					Rates:  map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.93")},
					AsOf:   upstream,
					Source: "frankfurter",
				},
			}, nil
		},
	}

	f := newTestFetcher(t)
	f.SetNowFunc(func() time.Time { return upstream.Add(2 * time.Hour) })

	obs, err := f.Fetch(context.Background(), src, market.Params{})
	require.NoError(t, err)
	require.NotNil(t, obs.Rates)
	assert.Equal(t, upstream, obs.Rates.AsOf, "parser timestamp must survive stamping")
	assert.Equal(t, "frankfurter", obs.Rates.Source)
}

func TestFetcherUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := &fakeSource{name: "goldprice", kind: market.KindMetals, url: srv.URL}

	_, err := newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchUpstreamStatusFailure),
		"expected %s, got %s", zrerr.CodeFetchUpstreamStatusFailure, zrerr.CodeOf(err))
	assert.True(t, zrerr.IsFetchFailure(err))
	assert.Equal(t, http.StatusInternalServerError, zrerr.FieldsOf(err)["status"])
}

func TestFetcherTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused

	src := &fakeSource{name: "goldprice", kind: market.KindMetals, url: srv.URL}

	_, err := newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchTransportFailure),
		"expected %s, got %s", zrerr.CodeFetchTransportFailure, zrerr.CodeOf(err))
	assert.True(t, zrerr.IsFetchFailure(err))
}

func TestFetcherHonorsParentDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	src := &fakeSource{name: "slow", kind: market.KindMetals, url: srv.URL}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher(t).Fetch(ctx, src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchTransportFailure),
		"expected %s, got %s", zrerr.CodeFetchTransportFailure, zrerr.CodeOf(err))
}

func TestFetcherParseFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		parseFn func([]byte) (*market.Observation, error)
	}{
		{"parser error", func([]byte) (*market.Observation, error) {
			return nil, errors.New("unexpected token")
		}},
		{"nil observation", func([]byte) (*market.Observation, error) {
			return nil, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{name: "stooq", kind: market.KindMetals, url: srv.URL, parseFn: tt.parseFn}

			_, err := newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
			require.Error(t, err)
			assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchParseInvalidFormat),
				"expected %s, got %s", zrerr.CodeFetchParseInvalidFormat, zrerr.CodeOf(err))
		})
	}
}

func TestFetcherBuildRequestErrors(t *testing.T) {
	// A coded error from BuildRequest carries meaning (a metered source out
	// of quota) and must reach the caller unchanged.
	quota := zrerr.New(zrerr.CodeBudgetExceeded, "monthly quota reached")
	src := &fakeSource{name: "metalprice-api", kind: market.KindMetals, buildErr: quota}

	_, err := newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.IsBudgetExceeded(err))

	src = &fakeSource{name: "broken", kind: market.KindMetals, buildErr: errors.New("no url")}
	_, err = newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchRequestInvalid),
		"expected %s, got %s", zrerr.CodeFetchRequestInvalid, zrerr.CodeOf(err))
}

func TestFetcherRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1<<20+1)))
	}))
	defer srv.Close()

	src := &fakeSource{name: "bloated", kind: market.KindMetals, url: srv.URL}

	_, err := newTestFetcher(t).Fetch(context.Background(), src, market.Params{})
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeFetchParseInvalidFormat),
		"expected %s, got %s", zrerr.CodeFetchParseInvalidFormat, zrerr.CodeOf(err))
}
