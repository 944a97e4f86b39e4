// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package equity implements per-symbol stock quote sources, used to price
// shareholdings. Unlike metals and rates these fetches are parameterized:
// the symbol comes in through the request params.
package equity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooChart reads the regular-market price from Yahoo Finance's chart
// endpoint, the primary equity source.
type YahooChart struct {
	url string
}

// NewYahooChart creates the Yahoo Finance source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewYahooChart(baseURL string) *YahooChart {
	if baseURL == "" {
		baseURL = yahooChartURL
	}
	return &YahooChart{url: baseURL}
}

func (s *YahooChart) Name() string      { return "yahoo-chart" }
func (s *YahooChart) Kind() market.Kind { return market.KindEquity }

func (s *YahooChart) BuildRequest(ctx context.Context, p market.Params) (*http.Request, error) {
	sym := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if sym == "" {
		return nil, zrerr.New(zrerr.CodeFetchRequestInvalid,
			"equity fetch requires a symbol", zrerr.FieldSource(s.Name()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.url+"/"+url.PathEscape(sym), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = "interval=1d&range=1d"
	return req, nil
}

func (s *YahooChart) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		Chart struct {
			Result []struct {
				Meta struct {
					Currency           string          `json:"currency"`
					Symbol             string          `json:"symbol"`
					RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
					RegularMarketTime  int64           `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding yahoo chart payload")
	}
	if e := payload.Chart.Error; e != nil {
		return nil, zrerr.Errorf(zrerr.CodeFetchParseInvalidFormat,
			"yahoo chart error: %s: %s", e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "yahoo chart payload has no result")
	}

	meta := payload.Chart.Result[0].Meta
	if !meta.RegularMarketPrice.IsPositive() {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"yahoo chart payload has no regular market price")
	}

	q := &market.PriceQuote{
		Symbol:   strings.ToUpper(meta.Symbol),
		Value:    meta.RegularMarketPrice,
		Currency: meta.Currency,
	}
	if q.Currency == "" {
		q.Currency = "USD"
	}
	if meta.RegularMarketTime > 0 {
		q.AsOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return &market.Observation{Kind: market.KindEquity, Quote: q}, nil
}
