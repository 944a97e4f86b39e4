// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package equity

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const stooqQuoteURL = "https://stooq.com/q/l/"

// StooqQuote reads a single close from stooq.com's CSV quote endpoint, the
// backup behind Yahoo. Bare tickers get stooq's .us exchange suffix; symbols
// that already carry a suffix pass through unchanged.
type StooqQuote struct {
	url string
}

// NewStooqQuote creates the stooq.com equity source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewStooqQuote(baseURL string) *StooqQuote {
	if baseURL == "" {
		baseURL = stooqQuoteURL
	}
	return &StooqQuote{url: baseURL}
}

func (s *StooqQuote) Name() string      { return "stooq-quote" }
func (s *StooqQuote) Kind() market.Kind { return market.KindEquity }

func (s *StooqQuote) BuildRequest(ctx context.Context, p market.Params) (*http.Request, error) {
	sym := strings.ToLower(strings.TrimSpace(p.Symbol))
	if sym == "" {
		return nil, zrerr.New(zrerr.CodeFetchRequestInvalid,
			"equity fetch requires a symbol", zrerr.FieldSource(s.Name()))
	}
	if !strings.Contains(sym, ".") {
		sym += ".us"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = "s=" + url.QueryEscape(sym) + "&f=sd2t2ohlcv&h&e=csv"
	return req, nil
}

func (s *StooqQuote) Parse(body []byte) (*market.Observation, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding stooq csv")
	}

	// Columns: Symbol,Date,Time,Open,High,Low,Close,Volume. Unknown symbols
	// come back with N/D in every numeric column.
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue
		}
		v, err := decimal.NewFromString(row[6])
		if err != nil || !v.IsPositive() {
			continue
		}
		q := &market.PriceQuote{
			// Strip stooq's exchange suffix so the quote carries the
			// caller's ticker; the fetcher fills it if this ends up empty.
			Symbol:   strings.TrimSuffix(strings.ToUpper(row[0]), ".US"),
			Value:    v,
			Currency: "USD",
		}
		return &market.Observation{Kind: market.KindEquity, Quote: q}, nil
	}

	return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "stooq csv has no usable close")
}
