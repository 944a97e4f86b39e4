// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/mrabdussalam/zakat-rates/internal/cascade"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Price endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-price",
		Method:      http.MethodGet,
		Path:        "/api/v1/prices/{kind}/{symbol}",
		Summary:     "Get a single price quote",
		Tags:        []string{"prices"},
	}, s.handleGetPrice)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-metals",
		Method:      http.MethodGet,
		Path:        "/api/v1/metals",
		Summary:     "Get gold and silver spot prices",
		Tags:        []string{"prices"},
	}, s.handleGetMetals)

	// Rate endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-rates",
		Method:      http.MethodGet,
		Path:        "/api/v1/rates/{base}",
		Summary:     "Get an exchange rate table",
		Tags:        []string{"rates"},
	}, s.handleGetRates)

	huma.Register(s.api, huma.Operation{
		OperationID: "convert-amount",
		Method:      http.MethodGet,
		Path:        "/api/v1/convert",
		Summary:     "Convert an amount between currencies",
		Tags:        []string{"rates"},
	}, s.handleConvert)

	// Introspection endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "pipeline-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Pipeline status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources",
		Summary:     "List registered sources",
		Tags:        []string{"sources"},
	}, s.handleListSources)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-source",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources/{name}",
		Summary:     "Get source details",
		Tags:        []string{"sources"},
	}, s.handleGetSource)
}

// --- Request/Response types for huma ---

type getPriceInput struct {
	Kind     string `path:"kind" doc:"Market data kind (metals, rates, equity)"`
	Symbol   string `path:"symbol" doc:"Symbol to price: gold, silver, a currency code, or a ticker"`
	Currency string `query:"currency" doc:"Optional target currency for the value"`
}
type getPriceOutput struct {
	Body market.PriceQuote
}

type getMetalsInput struct {
	Currency string `query:"currency" doc:"Optional target currency for both values"`
}
type getMetalsOutput struct {
	Body struct {
		Gold   market.PriceQuote `json:"gold"`
		Silver market.PriceQuote `json:"silver"`
	}
}

type getRatesInput struct {
	Base string `path:"base" doc:"Base currency code"`
}
type getRatesOutput struct {
	Body market.RateTable
}

type convertInput struct {
	Amount string `query:"amount" required:"true" doc:"Amount to convert, a decimal number"`
	From   string `query:"from" required:"true" doc:"Source currency code"`
	To     string `query:"to" required:"true" doc:"Target currency code"`
}
type convertOutput struct {
	Body cascade.Conversion
}

type statusOutput struct {
	Body statusBody
}
type statusBody struct {
	Status   string                    `json:"status" example:"ok" doc:"Service status"`
	Breakers map[string]health.Metrics `json:"breakers" doc:"Circuit state per market data kind"`
	Caches   map[string]int            `json:"caches" doc:"Entries held per cache"`
	Sources  map[string][]string       `json:"sources" doc:"Registered source names per kind"`
	Quota    *QuotaStatus              `json:"quota,omitempty" doc:"Metered source usage, absent when no source is metered"`
}

type listSourcesOutput struct {
	Body struct {
		Sources []SourceSummary `json:"sources"`
	}
}

type getSourceInput struct {
	Name string `path:"name" doc:"Source name"`
}
type getSourceOutput struct {
	Body SourceDetail
}

// --- Handlers ---

func (s *Server) handleGetPrice(ctx context.Context, input *getPriceInput) (*getPriceOutput, error) {
	kind, err := market.ParseKind(input.Kind)
	if err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("invalid market data kind %q", input.Kind))
	}
	q := s.services.Prices().Price(ctx, kind, input.Symbol, input.Currency)
	return &getPriceOutput{Body: q}, nil
}

func (s *Server) handleGetMetals(ctx context.Context, input *getMetalsInput) (*getMetalsOutput, error) {
	prices := s.services.Prices()
	out := &getMetalsOutput{}
	out.Body.Gold = prices.Price(ctx, market.KindMetals, "gold", input.Currency)
	out.Body.Silver = prices.Price(ctx, market.KindMetals, "silver", input.Currency)
	return out, nil
}

func (s *Server) handleGetRates(ctx context.Context, input *getRatesInput) (*getRatesOutput, error) {
	table := s.services.Prices().Rates(ctx)
	rebased, ok := market.Rebase(table, input.Base)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("no rate for base currency %q", input.Base))
	}
	return &getRatesOutput{Body: rebased}, nil
}

func (s *Server) handleConvert(ctx context.Context, input *convertInput) (*convertOutput, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("amount %q is not a decimal number", input.Amount))
	}
	conv := s.services.Prices().Convert(ctx, amount, input.From, input.To)
	return &convertOutput{Body: conv}, nil
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	status := s.services.Status()

	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Breakers = status.BreakerMetrics()
	out.Body.Caches = status.CacheSizes()

	sources := make(map[string][]string, len(market.Kinds()))
	for _, kind := range market.Kinds() {
		sources[kind.String()] = status.Sources(kind)
	}
	out.Body.Sources = sources

	if quota := s.services.Quota(); quota != nil {
		month, used, limit, err := quota.Usage()
		if err != nil {
			// Status stays serviceable when the counter file is unreadable.
			slog.Warn("reading quota usage for status", "error", err)
		} else {
			out.Body.Quota = &QuotaStatus{Month: month, Used: used, Limit: limit}
		}
	}
	return out, nil
}

func (s *Server) handleListSources(_ context.Context, _ *struct{}) (*listSourcesOutput, error) {
	status := s.services.Status()
	out := &listSourcesOutput{}
	out.Body.Sources = make([]SourceSummary, 0, 8)
	for _, kind := range market.Kinds() {
		for _, name := range status.Sources(kind) {
			out.Body.Sources = append(out.Body.Sources, SourceSummary{Name: name, Kind: kind})
		}
	}
	return out, nil
}

func (s *Server) handleGetSource(_ context.Context, input *getSourceInput) (*getSourceOutput, error) {
	status := s.services.Status()
	for _, kind := range market.Kinds() {
		for _, name := range status.Sources(kind) {
			if name != input.Name {
				continue
			}
			detail := SourceDetail{Name: name, Kind: kind}
			if m, ok := status.BreakerMetrics()[kind.String()]; ok {
				detail.Breaker = m
			}
			return &getSourceOutput{Body: detail}, nil
		}
	}
	return nil, huma.Error404NotFound(fmt.Sprintf("source %q not found", input.Name))
}
