// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package metals

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const metalsLiveURL = "https://api.metals.live/v1/spot"

// MetalsLive reads the metals.live spot feed, a JSON array of single-key
// objects quoting USD per troy ounce, one object per metal.
type MetalsLive struct {
	url string
}

// NewMetalsLive creates the metals.live source. baseURL overrides the
// production endpoint, useful for testing against a mock server.
func NewMetalsLive(baseURL string) *MetalsLive {
	if baseURL == "" {
		baseURL = metalsLiveURL
	}
	return &MetalsLive{url: baseURL}
}

func (s *MetalsLive) Name() string      { return "metals-live" }
func (s *MetalsLive) Kind() market.Kind { return market.KindMetals }

func (s *MetalsLive) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
}

func (s *MetalsLive) Parse(body []byte) (*market.Observation, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat, "decoding metals.live payload")
	}

	m := &market.MetalPrices{Currency: "USD"}
	for _, r := range raw {
		var entry map[string]decimal.Decimal
		if err := json.Unmarshal(r, &entry); err != nil {
			// History rows and status entries share the feed; skip anything
			// that is not a plain metal→price object.
			continue
		}
		if v, ok := entry["gold"]; ok && v.IsPositive() {
			m.Gold = perGram(v)
		}
		if v, ok := entry["silver"]; ok && v.IsPositive() {
			m.Silver = perGram(v)
		}
	}

	if !m.Complete() {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"metals.live feed missing gold or silver entry")
	}
	return &market.Observation{Kind: market.KindMetals, Metals: m}, nil
}
