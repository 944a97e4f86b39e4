// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusJSON = `{
  "status": "ok",
  "breakers": {
    "metals": {"failure_count": 0, "available": true},
    "rates":  {"failure_count": 0, "available": true},
    "equity": {"failure_count": 4, "available": false}
  },
  "caches": {"metals": 1, "rates": 1, "equity": 0},
  "sources": {
    "metals": ["goldprice", "metals-live", "stooq"],
    "rates":  ["currency-cdn", "currency-cdn-fallback", "frankfurter", "open-er-api"],
    "equity": ["yahoo-chart", "stooq-quote"]
  },
  "quota": {"month": "2026-08", "used": 42, "limit": 100}
}`

func TestStatusCommand_HealthyDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusJSON))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", testAddr(srv)})

	err := root.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, ": ok")
	assert.Contains(t, output, "metals")
	assert.Contains(t, output, "goldprice, metals-live, stooq")
	assert.Contains(t, output, "breaker closed")
	assert.Contains(t, output, "breaker open (4 consecutive failures)")
	assert.Contains(t, output, "metalprice-api quota: 42/100 used in 2026-08")
}

func TestStatusCommand_NoQuotaSection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok", "breakers": {}, "caches": {}, "sources": {}}`))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", testAddr(srv)})

	err := root.Execute()
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "quota")
}

func TestStatusCommand_DaemonDown(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"status", "--address", "127.0.0.1:1"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "not running")
}
