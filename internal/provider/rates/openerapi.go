// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package rates

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const openERAPIURL = "https://open.er-api.com/v6/latest/USD"

// OpenERAPI reads the open endpoint of exchangerate-api.com, the last live
// rates source in priority order.
type OpenERAPI struct {
	url string
}

// NewOpenERAPI creates the open.er-api.com source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewOpenERAPI(baseURL string) *OpenERAPI {
	if baseURL == "" {
		baseURL = openERAPIURL
	}
	return &OpenERAPI{url: baseURL}
}

func (s *OpenERAPI) Name() string      { return "open-er-api" }
func (s *OpenERAPI) Kind() market.Kind { return market.KindRates }

func (s *OpenERAPI) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
}

func (s *OpenERAPI) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		Result     string                     `json:"result"`
		UpdateUnix int64                      `json:"time_last_update_unix"`
		BaseCode   string                     `json:"base_code"`
		Rates      map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding open.er-api payload")
	}
	if payload.Result != "success" {
		return nil, zrerr.Errorf(zrerr.CodeFetchParseInvalidFormat,
			"open.er-api result is %q, want success", payload.Result)
	}
	if payload.BaseCode != "" && payload.BaseCode != "USD" {
		return nil, zrerr.Errorf(zrerr.CodeFetchParseInvalidFormat,
			"open.er-api returned base %s, want USD", payload.BaseCode)
	}
	if len(payload.Rates) == 0 {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "open.er-api payload has no rates")
	}

	table := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, v := range payload.Rates {
		table[strings.ToUpper(code)] = v
	}

	rt := &market.RateTable{Base: "USD", Rates: table}
	if payload.UpdateUnix > 0 {
		rt.AsOf = time.Unix(payload.UpdateUnix, 0).UTC()
	}
	return &market.Observation{Kind: market.KindRates, Rates: rt}, nil
}
