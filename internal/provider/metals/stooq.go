// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package metals

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// The query string is part of the endpoint: s selects both symbols (stooq
// separates them with a literal +), f picks the columns, e=csv the format.
const stooqURL = "https://stooq.com/q/l/?s=xauusd+xagusd&f=sd2t2ohlcv&h&e=csv"

// Stooq reads gold and silver closes from stooq.com's CSV quote endpoint.
// Stooq quotes in market-local time, so the observation carries no
// timestamp of its own and gets stamped at fetch time.
type Stooq struct {
	url string
}

// NewStooq creates the stooq.com metals source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewStooq(baseURL string) *Stooq {
	if baseURL == "" {
		baseURL = stooqURL
	}
	return &Stooq{url: baseURL}
}

func (s *Stooq) Name() string      { return "stooq" }
func (s *Stooq) Kind() market.Kind { return market.KindMetals }

func (s *Stooq) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
}

func (s *Stooq) Parse(body []byte) (*market.Observation, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding stooq csv")
	}

	// Columns: Symbol,Date,Time,Open,High,Low,Close,Volume. Unknown symbols
	// come back with N/D in every numeric column.
	closes := make(map[string]decimal.Decimal, 2)
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue
		}
		v, err := decimal.NewFromString(row[6])
		if err != nil || !v.IsPositive() {
			continue
		}
		closes[strings.ToUpper(row[0])] = v
	}

	m := &market.MetalPrices{
		Gold:     perGram(closes["XAUUSD"]),
		Silver:   perGram(closes["XAGUSD"]),
		Currency: "USD",
	}
	if !m.Complete() {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"stooq csv missing xauusd or xagusd close")
	}
	return &market.Observation{Kind: market.KindMetals, Metals: m}, nil
}
