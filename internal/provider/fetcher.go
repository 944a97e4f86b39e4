// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mrabdussalam/zakat-rates/internal/httpx"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const (
	// MinFetchTimeout and MaxFetchTimeout clamp the per-attempt timeout.
	// Below the floor, slow-but-working free APIs get cut off before they
	// answer; above the ceiling, one hung source stalls the whole walk.
	MinFetchTimeout = 5 * time.Second
	MaxFetchTimeout = 15 * time.Second

	// maxResponseBytes caps how much of an upstream body is read. The
	// largest legitimate payload (a full currency list) is well under this.
	maxResponseBytes = 1 << 20
)

// ClampFetchTimeout forces d into the allowed per-attempt range.
func ClampFetchTimeout(d time.Duration) time.Duration {
	if d < MinFetchTimeout {
		return MinFetchTimeout
	}
	if d > MaxFetchTimeout {
		return MaxFetchTimeout
	}
	return d
}

// Fetcher executes one fetch attempt: build the source's request, issue the
// GET, check the status, read the body, parse. Every failure mode maps to
// one of the typed fetch codes so the cascade can treat them uniformly as
// "try the next source".
type Fetcher struct {
	client  *httpx.Client
	timeout time.Duration
	nowFunc func() time.Time
}

// NewFetcher creates a Fetcher with the per-attempt timeout clamped into
// [MinFetchTimeout, MaxFetchTimeout].
func NewFetcher(client *httpx.Client, timeout time.Duration) (*Fetcher, error) {
	if client == nil {
		return nil, zrerr.New(zrerr.CodeConfigValidateInvalidValue, "fetcher requires an HTTP client")
	}
	return &Fetcher{
		client:  client,
		timeout: ClampFetchTimeout(timeout),
		nowFunc: time.Now,
	}, nil
}

// Timeout returns the clamped per-attempt timeout.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// SetNowFunc overrides the clock used to stamp observations. Tests only.
func (f *Fetcher) SetNowFunc(fn func() time.Time) {
	f.nowFunc = fn
}

// Fetch runs one attempt against src and returns the parsed observation.
func (f *Fetcher) Fetch(ctx context.Context, src Source, p market.Params) (*market.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := src.BuildRequest(ctx, p)
	if err != nil {
		// Coded errors (a metered source out of quota) pass through so the
		// cascade can tell them apart from malformed requests.
		if zrerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, zrerr.Wrap(err, zrerr.CodeFetchRequestInvalid,
			"building request for "+src.Name(), zrerr.FieldSource(src.Name()))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchTransportFailure,
			"fetching from "+src.Name(), zrerr.FieldSource(src.Name()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, zrerr.New(zrerr.CodeFetchUpstreamStatusFailure,
			"source "+src.Name()+" returned status "+strconv.Itoa(resp.StatusCode),
			zrerr.FieldSource(src.Name()),
			zrerr.Field("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeFetchTransportFailure,
			"reading response from "+src.Name(), zrerr.FieldSource(src.Name()))
	}
	if len(body) > maxResponseBytes {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"response from "+src.Name()+" exceeds size cap",
			zrerr.FieldSource(src.Name()),
		)
	}

	obs, err := src.Parse(body)
	if err != nil {
		if zrerr.IsFetchFailure(err) {
			return nil, err
		}
		return nil, zrerr.Wrap(err, zrerr.CodeFetchParseInvalidFormat,
			"parsing response from "+src.Name(), zrerr.FieldSource(src.Name()))
	}
	if obs == nil {
		return nil, zrerr.New(zrerr.CodeFetchParseInvalidFormat,
			"parser returned no observation", zrerr.FieldSource(src.Name()))
	}

	f.stamp(obs, src, p)
	return obs, nil
}

// stamp fills in the attribution fields a parser left empty. Parsers own
// the values; the fetcher owns knowing which source, symbol, and when.
func (f *Fetcher) stamp(obs *market.Observation, src Source, p market.Params) {
	now := f.nowFunc()
	if obs.Kind == "" {
		obs.Kind = src.Kind()
	}
	switch {
	case obs.Metals != nil:
		if obs.Metals.Source == "" {
			obs.Metals.Source = src.Name()
		}
		if obs.Metals.AsOf.IsZero() {
			obs.Metals.AsOf = now
		}
		if obs.Metals.Currency == "" {
			obs.Metals.Currency = "USD"
		}
	case obs.Rates != nil:
		if obs.Rates.Source == "" {
			obs.Rates.Source = src.Name()
		}
		if obs.Rates.AsOf.IsZero() {
			obs.Rates.AsOf = now
		}
	case obs.Quote != nil:
		if obs.Quote.Source == "" {
			obs.Quote.Source = src.Name()
		}
		if obs.Quote.AsOf.IsZero() {
			obs.Quote.AsOf = now
		}
		if obs.Quote.Symbol == "" {
			obs.Quote.Symbol = strings.ToUpper(p.Symbol)
		}
	}
}
