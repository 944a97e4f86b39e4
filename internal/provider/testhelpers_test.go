// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider_test

import (
	"context"
	"net/http"

	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// fakeSource is a reusable Source implementation for tests. Point url at an
// httptest server for fetcher tests; override parseFn and buildErr to force
// specific failure modes.
type fakeSource struct {
	name     string
	kind     market.Kind
	url      string
	buildErr error
	parseFn  func(body []byte) (*market.Observation, error)
}

func (f *fakeSource) Name() string {
	return f.name
}

func (f *fakeSource) Kind() market.Kind {
	return f.kind
}

func (f *fakeSource) BuildRequest(ctx context.Context, _ market.Params) (*http.Request, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
}

func (f *fakeSource) Parse(body []byte) (*market.Observation, error) {
	if f.parseFn != nil {
		return f.parseFn(body)
	}
	return &market.Observation{Kind: f.kind}, nil
}
