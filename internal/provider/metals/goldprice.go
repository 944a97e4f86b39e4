// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package metals

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const goldPriceURL = "https://data-asg.goldprice.org/dbXRates/USD"

// GoldPrice reads spot prices from goldprice.org's public ticker feed.
type GoldPrice struct {
	url string
}

// NewGoldPrice creates the goldprice.org source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewGoldPrice(baseURL string) *GoldPrice {
	if baseURL == "" {
		baseURL = goldPriceURL
	}
	return &GoldPrice{url: baseURL}
}

func (s *GoldPrice) Name() string      { return "goldprice" }
func (s *GoldPrice) Kind() market.Kind { return market.KindMetals }

func (s *GoldPrice) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
}

func (s *GoldPrice) Parse(body []byte) (*market.Observation, error) {
	var payload struct {
		TS    int64 `json:"ts"`
		Items []struct {
			Currency string          `json:"curr"`
			XAUPrice decimal.Decimal `json:"xauPrice"`
			XAGPrice decimal.Decimal `json:"xagPrice"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding goldprice payload")
	}

	// The feed carries one item per requested quote currency; the endpoint
	// pins USD but scan rather than trust item order.
	for _, item := range payload.Items {
		if item.Currency != "USD" {
			continue
		}
		m := &market.MetalPrices{
			Gold:     perGram(item.XAUPrice),
			Silver:   perGram(item.XAGPrice),
			Currency: "USD",
		}
		if payload.TS > 0 {
			m.AsOf = time.UnixMilli(payload.TS).UTC()
		}
		if !m.Complete() {
			return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
				"goldprice payload missing gold or silver price")
		}
		return &market.Observation{Kind: market.KindMetals, Metals: m}, nil
	}

	return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat, "goldprice payload has no USD item")
}
