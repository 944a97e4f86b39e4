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

const frankfurterURL = "https://api.frankfurter.dev/v1/latest"

// Frankfurter reads ECB reference rates from frankfurter.dev. The table
// covers ~30 currencies and refreshes on ECB working days only, so its date
// can lag a weekend behind the CDN dataset.
type Frankfurter struct {
	url string
}

// NewFrankfurter creates the frankfurter.dev source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewFrankfurter(baseURL string) *Frankfurter {
	if baseURL == "" {
		baseURL = frankfurterURL
	}
	return &Frankfurter{url: baseURL}
}

func (s *Frankfurter) Name() string      { return "frankfurter" }
func (s *Frankfurter) Kind() market.Kind { return market.KindRates }

func (s *Frankfurter) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = "base=USD"
	return req, nil
}

func (s *Frankfurter) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		Base  string                     `json:"base"`
		Date  string                     `json:"date"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding frankfurter payload")
	}
	if payload.Base != "" && payload.Base != "USD" {
		return nil, zrerr.Errorf(zrerr.CodeFetchParseInvalidFormat,
			"frankfurter returned base %s, want USD", payload.Base)
	}
	if len(payload.Rates) == 0 {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "frankfurter payload has no rates")
	}

	table := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, v := range payload.Rates {
		table[strings.ToUpper(code)] = v
	}

	rt := &market.RateTable{Base: "USD", Rates: table}
	if d, err := time.Parse("2006-01-02", payload.Date); err == nil {
		rt.AsOf = d.UTC()
	}
	return &market.Observation{Kind: market.KindRates, Rates: rt}, nil
}
