// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrabdussalam/zakat-rates/internal/config"
)

func testDaemonConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Listen: "127.0.0.1:0"},
		Data:    config.DataConfig{Dir: t.TempDir()},
		Cache:   config.CacheConfig{MetalsTTL: time.Minute, RatesTTL: time.Minute, EquityTTL: time.Minute},
		Fetch:   config.FetchConfig{Timeout: 5 * time.Second, RetryAttempts: 1, RetryBaseDelay: 10 * time.Millisecond},
		Breaker: config.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute},
	}
}

func TestWireDaemon(t *testing.T) {
	d, err := WireDaemon(testDaemonConfig(t))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.NotNil(t, d.Server)
	assert.NotNil(t, d.Cascade)
	assert.NotNil(t, d.Metrics)
	assert.Nil(t, d.Counter, "no metered source configured")
}

func TestWireDaemon_StatusEndpoint(t *testing.T) {
	d, err := WireDaemon(testDaemonConfig(t))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"metals"`)
	assert.NotContains(t, body, `"quota"`)
}

func TestWireDaemon_RegistersFreeSources(t *testing.T) {
	d, err := WireDaemon(testDaemonConfig(t))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"goldprice", "metals-live", "stooq",
		"currency-cdn", "currency-cdn-fallback", "frankfurter", "open-er-api",
		"yahoo-chart", "stooq-quote",
	} {
		assert.Contains(t, body, name)
	}
	assert.NotContains(t, body, "metalprice-api")
}

func TestWireDaemon_MeteredSource(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.Sources.MetalPriceAPI = config.MetalPriceAPIConfig{APIKey: "test-key", MonthlyLimit: 100}

	d, err := WireDaemon(cfg)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	require.NotNil(t, d.Counter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quota"`)
	assert.Contains(t, w.Body.String(), `"limit":100`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sources/metalprice-api", nil)
	w = httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "zrates_quota_requests_used")
}

func TestWireDaemon_UnmeteredWhenLimitZero(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.Sources.MetalPriceAPI = config.MetalPriceAPIConfig{APIKey: "test-key", MonthlyLimit: 0}

	d, err := WireDaemon(cfg)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	// The source registers, but without quota tracking.
	assert.Nil(t, d.Counter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources/metalprice-api", nil)
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWireDaemon_MetricsEndpoint(t *testing.T) {
	d, err := WireDaemon(testDaemonConfig(t))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDaemon_GracefulShutdown(t *testing.T) {
	d, err := WireDaemon(testDaemonConfig(t))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Start and let the deadline cancel it; shutdown must be clean.
	err = d.Start(ctx)
	assert.NoError(t, err)
}
