// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package metals

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrabdussalam/zakat-rates/internal/store"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const metalPriceAPIURL = "https://api.metalpriceapi.com/v1/latest"

// MetalPriceAPI reads spot prices from metalpriceapi.com. The free tier is
// metered, so every request first takes a slot from the monthly counter;
// once the quota is spent BuildRequest fails with a budget error, which the
// cascade treats as "skip" rather than a source failure.
type MetalPriceAPI struct {
	url     string
	apiKey  string
	counter *store.RequestCounter
}

// NewMetalPriceAPI creates the metered metalpriceapi.com source. An API key
// is required. counter may be nil, which disables quota tracking; baseURL
// overrides the production endpoint, useful for testing against a mock
// server.
func NewMetalPriceAPI(baseURL, apiKey string, counter *store.RequestCounter) (*MetalPriceAPI, error) {
	if apiKey == "" {
		return nil, zrerr.New(zrerr.CodeConfigValidateInvalidValue,
			"metalpriceapi: missing api_key in config")
	}
	if baseURL == "" {
		baseURL = metalPriceAPIURL
	}
	return &MetalPriceAPI{url: baseURL, apiKey: apiKey, counter: counter}, nil
}

func (s *MetalPriceAPI) Name() string      { return "metalprice-api" }
func (s *MetalPriceAPI) Kind() market.Kind { return market.KindMetals }

func (s *MetalPriceAPI) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	if s.counter != nil {
		ok, err := s.counter.TryAcquire()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, zrerr.New(zrerr.CodeBudgetExceeded,
				"metalpriceapi monthly request quota spent", zrerr.FieldSource(s.Name()))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("api_key", s.apiKey)
	q.Set("base", "USD")
	q.Set("currencies", "XAU,XAG")
	req.URL.RawQuery = q.Encode()
	return req, nil
}

func (s *MetalPriceAPI) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		Success   bool                       `json:"success"`
		Timestamp int64                      `json:"timestamp"`
		Rates     map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding metalpriceapi payload")
	}
	if !payload.Success {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "metalpriceapi reported failure")
	}

	// Rates are metal units per USD, the inverse of a spot price.
	xau := metalRate(payload.Rates, "XAU")
	xag := metalRate(payload.Rates, "XAG")
	if !xau.IsPositive() || !xag.IsPositive() {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"metalpriceapi payload missing XAU or XAG rate")
	}

	m := &market.MetalPrices{
		Gold:     perGram(one.Div(xau)),
		Silver:   perGram(one.Div(xag)),
		Currency: "USD",
	}
	if payload.Timestamp > 0 {
		m.AsOf = time.Unix(payload.Timestamp, 0).UTC()
	}
	return &market.Observation{Kind: market.KindMetals, Metals: m}, nil
}

// metalRate looks up a metal code tolerating both key styles the API has
// shipped ("XAU" and "USDXAU").
func metalRate(rates map[string]decimal.Decimal, code string) decimal.Decimal {
	if v, ok := rates[code]; ok {
		return v
	}
	return rates["USD"+code]
}
