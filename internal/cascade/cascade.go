// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package cascade orchestrates the fall-through acquisition pipeline. For
// each data kind the tiers run strictly in order: fresh cache, live sources
// behind a circuit breaker, stale cache up to an emergency bound, the
// durable snapshot file, and finally hardcoded constants. A caller always
// gets a value; failure shows up only as fallback tagging on the result.
package cascade

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrabdussalam/zakat-rates/internal/cache"
	"github.com/mrabdussalam/zakat-rates/internal/metrics"
	"github.com/mrabdussalam/zakat-rates/internal/provider"
	"github.com/mrabdussalam/zakat-rates/internal/store"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

const (
	DefaultMetalsTTL = 5 * time.Minute
	DefaultRatesTTL  = time.Hour
	DefaultEquityTTL = 5 * time.Minute

	// Rates sources retry within one cascade pass; metals and equity walk
	// straight to the next source instead.
	DefaultRetryAttempts  = 2
	DefaultRetryBaseDelay = 500 * time.Millisecond

	metalsKey = "metals"
	ratesKey  = "usd"
)

// Cascade tier names as they appear in metrics and logs.
const (
	TierCache     = "cache"
	TierLive      = "live"
	TierEmergency = "emergency"
	TierSnapshot  = "snapshot"
	TierConstants = "constants"
)

// Fetcher executes one live fetch attempt against a source.
type Fetcher interface {
	Fetch(ctx context.Context, src provider.Source, p market.Params) (*market.Observation, error)
}

// Config assembles a Cascade. Registry, Fetcher, and Validator are
// required; everything else has a default.
type Config struct {
	Registry  *provider.Registry
	Fetcher   Fetcher
	Validator *market.Validator

	// Snapshots backs the file-fallback tier; nil disables it.
	Snapshots *store.SnapshotStore

	// Metrics defaults to collectors on a private registry, which keeps
	// library use from polluting the global namespace.
	Metrics *metrics.Metrics

	Logger *slog.Logger

	MetalsTTL time.Duration
	RatesTTL  time.Duration
	EquityTTL time.Duration

	FailureThreshold int64
	ResetTimeout     time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Cascade owns the per-kind caches and breakers and runs the tier walk.
// Safe for concurrent use.
type Cascade struct {
	registry  *provider.Registry
	fetcher   Fetcher
	validator *market.Validator
	snapshots *store.SnapshotStore
	metrics   *metrics.Metrics
	logger    *slog.Logger

	metalsCache *cache.Store[market.MetalPrices]
	ratesCache  *cache.Store[market.RateTable]
	equityCache *cache.Store[market.PriceQuote]

	breakers map[market.Kind]*provider.Breaker

	retryAttempts int
	retryBase     time.Duration

	nowFunc  func() time.Time
	seedFunc func() uint64
	sleep    func(ctx context.Context, d time.Duration) error
}

// New validates cfg, fills defaults, and builds the cascade.
func New(cfg Config) (*Cascade, error) {
	if cfg.Registry == nil || cfg.Fetcher == nil || cfg.Validator == nil {
		return nil, zrerr.New(zrerr.CodeConfigValidateInvalidValue,
			"cascade requires a registry, a fetcher, and a validator")
	}
	if cfg.MetalsTTL <= 0 {
		cfg.MetalsTTL = DefaultMetalsTTL
	}
	if cfg.RatesTTL <= 0 {
		cfg.RatesTTL = DefaultRatesTTL
	}
	if cfg.EquityTTL <= 0 {
		cfg.EquityTTL = DefaultEquityTTL
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = provider.DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = provider.DefaultResetTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	metalsCache, err := cache.NewStore[market.MetalPrices](cfg.MetalsTTL)
	if err != nil {
		return nil, err
	}
	ratesCache, err := cache.NewStore[market.RateTable](cfg.RatesTTL)
	if err != nil {
		return nil, err
	}
	equityCache, err := cache.NewStore[market.PriceQuote](cfg.EquityTTL)
	if err != nil {
		return nil, err
	}

	// One breaker per data kind, shared by that kind's sources.
	breakers := make(map[market.Kind]*provider.Breaker, len(market.Kinds()))
	for _, k := range market.Kinds() {
		br, err := provider.NewBreaker(cfg.FailureThreshold, cfg.ResetTimeout)
		if err != nil {
			return nil, err
		}
		breakers[k] = br
	}

	return &Cascade{
		registry:      cfg.Registry,
		fetcher:       cfg.Fetcher,
		validator:     cfg.Validator,
		snapshots:     cfg.Snapshots,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		metalsCache:   metalsCache,
		ratesCache:    ratesCache,
		equityCache:   equityCache,
		breakers:      breakers,
		retryAttempts: cfg.RetryAttempts,
		retryBase:     cfg.RetryBaseDelay,
		nowFunc:       time.Now,
		seedFunc:      rand.Uint64,
		sleep:         sleepCtx,
	}, nil
}

// Metals returns the current gold and silver prices in USD per gram.
func (c *Cascade) Metals(ctx context.Context) market.MetalPrices {
	kind := market.KindMetals
	log := c.logger.With("kind", kind.String(), "fetch_id", uuid.NewString())

	if m, ok := c.metalsCache.Get(metalsKey); ok {
		m.CacheSource = market.CacheSourceMemory
		c.metrics.RecordCacheHit(kind.String(), "fresh")
		c.metrics.RecordTierServed(kind.String(), TierCache)
		return m
	}
	c.metrics.RecordCacheMiss(kind.String())

	if obs := c.live(ctx, kind, market.Params{}, log); obs != nil && obs.Metals != nil {
		m := *obs.Metals
		c.metalsCache.Set(metalsKey, m)
		c.saveMetalsSnapshot(m, log)
		c.metrics.RecordTierServed(kind.String(), TierLive)
		return m
	}

	if m, storedAt, ok := c.metalsCache.GetRelaxed(metalsKey, cache.EmergencyMaxAge); ok {
		m.IsFallback = true
		m.CacheSource = market.CacheSourceEmergency
		c.metrics.RecordCacheHit(kind.String(), "emergency")
		c.metrics.RecordTierServed(kind.String(), TierEmergency)
		c.metrics.RecordFallback(kind.String())
		log.Warn("serving stale cached metals", "stored_at", storedAt, "source", m.Source)
		return m
	}

	if m, ok := c.snapshotMetals(log); ok {
		c.metrics.RecordTierServed(kind.String(), TierSnapshot)
		c.metrics.RecordFallback(kind.String())
		log.Warn("serving snapshot metals", "as_of", m.AsOf)
		return m
	}

	c.metrics.RecordTierServed(kind.String(), TierConstants)
	c.metrics.RecordFallback(kind.String())
	log.Warn("serving hardcoded metal prices, every other tier failed")
	return market.FallbackMetals(c.nowFunc())
}

// Rates returns the current USD-based exchange-rate table. There is no
// snapshot tier for rates; the hardcoded pair table is the floor.
func (c *Cascade) Rates(ctx context.Context) market.RateTable {
	kind := market.KindRates
	log := c.logger.With("kind", kind.String(), "fetch_id", uuid.NewString())

	if t, ok := c.ratesCache.Get(ratesKey); ok {
		t.CacheSource = market.CacheSourceMemory
		c.metrics.RecordCacheHit(kind.String(), "fresh")
		c.metrics.RecordTierServed(kind.String(), TierCache)
		return t
	}
	c.metrics.RecordCacheMiss(kind.String())

	if obs := c.live(ctx, kind, market.Params{Base: "USD"}, log); obs != nil && obs.Rates != nil {
		t := *obs.Rates
		c.ratesCache.Set(ratesKey, t)
		c.metrics.RecordTierServed(kind.String(), TierLive)
		return t
	}

	if t, storedAt, ok := c.ratesCache.GetRelaxed(ratesKey, cache.EmergencyMaxAge); ok {
		t.IsFallback = true
		t.CacheSource = market.CacheSourceEmergency
		c.metrics.RecordCacheHit(kind.String(), "emergency")
		c.metrics.RecordTierServed(kind.String(), TierEmergency)
		c.metrics.RecordFallback(kind.String())
		log.Warn("serving stale cached rates", "stored_at", storedAt, "source", t.Source)
		return t
	}

	c.metrics.RecordTierServed(kind.String(), TierConstants)
	c.metrics.RecordFallback(kind.String())
	log.Warn("serving hardcoded rate table, every other tier failed")
	return market.FallbackRates(c.nowFunc())
}

// Equity returns a quote for one stock symbol. When no tier can price it
// the result is a zero-value quote tagged market.SourceUnavailable rather
// than an error.
func (c *Cascade) Equity(ctx context.Context, symbol string) market.PriceQuote {
	kind := market.KindEquity
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	log := c.logger.With("kind", kind.String(), "symbol", sym, "fetch_id", uuid.NewString())

	if sym == "" {
		log.Warn("equity request without symbol")
		return c.unavailableQuote("")
	}

	if q, ok := c.equityCache.Get(sym); ok {
		q.CacheSource = market.CacheSourceMemory
		c.metrics.RecordCacheHit(kind.String(), "fresh")
		c.metrics.RecordTierServed(kind.String(), TierCache)
		return q
	}
	c.metrics.RecordCacheMiss(kind.String())

	if obs := c.live(ctx, kind, market.Params{Symbol: sym}, log); obs != nil && obs.Quote != nil {
		q := *obs.Quote
		if q.Symbol == "" {
			q.Symbol = sym
		}
		c.equityCache.Set(sym, q)
		c.saveEquitySnapshot(q, log)
		c.metrics.RecordTierServed(kind.String(), TierLive)
		return q
	}

	if q, storedAt, ok := c.equityCache.GetRelaxed(sym, cache.EmergencyMaxAge); ok {
		q.IsFallback = true
		q.CacheSource = market.CacheSourceEmergency
		c.metrics.RecordCacheHit(kind.String(), "emergency")
		c.metrics.RecordTierServed(kind.String(), TierEmergency)
		c.metrics.RecordFallback(kind.String())
		log.Warn("serving stale cached quote", "stored_at", storedAt, "source", q.Source)
		return q
	}

	if q, ok := c.snapshotEquity(sym, log); ok {
		c.metrics.RecordTierServed(kind.String(), TierSnapshot)
		c.metrics.RecordFallback(kind.String())
		log.Warn("serving snapshot quote", "as_of", q.AsOf)
		return q
	}

	c.metrics.RecordTierServed(kind.String(), TierConstants)
	c.metrics.RecordFallback(kind.String())
	log.Warn("no tier could price symbol, returning unavailable quote")
	return c.unavailableQuote(sym)
}

// Price answers the generic quote request the API surface exposes: a metal
// symbol, an equity ticker, or a currency code (quoted as units per USD),
// optionally re-denominated into another currency.
func (c *Cascade) Price(ctx context.Context, kind market.Kind, symbol, currency string) market.PriceQuote {
	var q market.PriceQuote
	switch kind {
	case market.KindMetals:
		sym := strings.ToLower(strings.TrimSpace(symbol))
		q = c.Metals(ctx).Quote(sym)
		if !q.Value.IsPositive() {
			q = c.unavailableQuote(sym)
		}
	case market.KindEquity:
		q = c.Equity(ctx, symbol)
	case market.KindRates:
		q = c.ratePrice(ctx, symbol)
	default:
		q = c.unavailableQuote(strings.ToUpper(strings.TrimSpace(symbol)))
	}
	return c.convertQuote(ctx, q, currency)
}

// live walks the ordered sources for kind behind its breaker and returns
// the first observation that fetches and validates, or nil.
func (c *Cascade) live(ctx context.Context, kind market.Kind, p market.Params, log *slog.Logger) *market.Observation {
	br := c.breakers[kind]
	if !br.Allow() {
		c.metrics.SetBreakerState(kind.String(), true)
		denied := zrerr.New(zrerr.CodeBreakerRequestDenied,
			"circuit open", zrerr.FieldKind(kind.String()))
		log.Info("skipping live sources", "error", denied)
		return nil
	}
	c.metrics.SetBreakerState(kind.String(), false)

	sources := c.registry.Ordered(kind, c.seedFunc())
	if len(sources) == 0 {
		log.Warn("no sources registered")
		return nil
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			log.Info("request canceled during source walk", "error", ctx.Err())
			return nil
		}

		obs, err := c.attempt(ctx, kind, src, p)
		if err != nil {
			if zrerr.IsBudgetExceeded(err) {
				// Quota exhaustion is a skip, not a failure; the breaker
				// only counts sources that were actually tried.
				log.Info("source skipped, budget spent", "source", src.Name())
				continue
			}
			c.recordFailure(kind, br)
			log.Warn("source failed", "source", src.Name(), "error", err)
			continue
		}

		if err := c.validator.Observation(obs, c.nowFunc()); err != nil {
			c.metrics.RecordValidationFailure(src.Name())
			c.recordFailure(kind, br)
			log.Warn("source returned implausible data", "source", src.Name(), "error", err)
			continue
		}

		br.RecordSuccess()
		c.metrics.SetBreakerState(kind.String(), false)
		log.Debug("live fetch succeeded", "source", src.Name())
		return obs
	}

	exhausted := zrerr.New(zrerr.CodeCascadeSourcesExhausted,
		"every live source failed", zrerr.FieldKind(kind.String()))
	log.Warn("live tier exhausted", "error", exhausted)
	return nil
}

// attempt runs one source fetch, with backoff-spaced retries for rates.
func (c *Cascade) attempt(ctx context.Context, kind market.Kind, src provider.Source, p market.Params) (*market.Observation, error) {
	if kind == market.KindRates {
		return retry(ctx, c.retryAttempts, c.retryBase, c.sleep, func() (*market.Observation, error) {
			return c.timedFetch(ctx, src, p)
		})
	}
	return c.timedFetch(ctx, src, p)
}

func (c *Cascade) timedFetch(ctx context.Context, src provider.Source, p market.Params) (*market.Observation, error) {
	start := c.nowFunc()
	obs, err := c.fetcher.Fetch(ctx, src, p)
	elapsed := c.nowFunc().Sub(start).Seconds()

	switch {
	case err == nil:
		c.metrics.RecordFetch(src.Name(), metrics.OutcomeSuccess, elapsed)
	case zrerr.IsBudgetExceeded(err):
		c.metrics.RecordFetch(src.Name(), metrics.OutcomeSkipped, elapsed)
	default:
		c.metrics.RecordFetch(src.Name(), metrics.OutcomeFailure, elapsed)
	}
	return obs, err
}

func (c *Cascade) recordFailure(kind market.Kind, br *provider.Breaker) {
	wasOpen := !br.Metrics().Available
	br.RecordFailure()
	if nowOpen := !br.Metrics().Available; nowOpen && !wasOpen {
		c.metrics.RecordBreakerOpened(kind.String())
		c.metrics.SetBreakerState(kind.String(), true)
	}
}

func (c *Cascade) saveMetalsSnapshot(m market.MetalPrices, log *slog.Logger) {
	if c.snapshots == nil {
		return
	}
	if _, err := c.snapshots.SaveMetalsIfAbsent(m); err != nil {
		log.Warn("snapshot write failed", "error", err)
	}
}

func (c *Cascade) saveEquitySnapshot(q market.PriceQuote, log *slog.Logger) {
	if c.snapshots == nil {
		return
	}
	if _, err := c.snapshots.SaveEquityIfAbsent(q); err != nil {
		log.Warn("snapshot write failed", "error", err)
	}
}

func (c *Cascade) snapshotMetals(log *slog.Logger) (market.MetalPrices, bool) {
	if c.snapshots == nil {
		return market.MetalPrices{}, false
	}
	snap, err := c.snapshots.Load()
	if err != nil {
		log.Warn("snapshot load failed", "error", err)
		return market.MetalPrices{}, false
	}
	if snap == nil || snap.Metals == nil {
		return market.MetalPrices{}, false
	}

	m := *snap.Metals
	obs := market.Observation{Kind: market.KindMetals, Metals: &m}
	if err := c.validator.RelaxedObservation(&obs, c.nowFunc()); err != nil {
		log.Warn("snapshot metals rejected", "error", err)
		return market.MetalPrices{}, false
	}

	m.Source = market.SourceFileFallback
	m.IsFallback = true
	return m, true
}

func (c *Cascade) snapshotEquity(sym string, log *slog.Logger) (market.PriceQuote, bool) {
	if c.snapshots == nil {
		return market.PriceQuote{}, false
	}
	snap, err := c.snapshots.Load()
	if err != nil {
		log.Warn("snapshot load failed", "error", err)
		return market.PriceQuote{}, false
	}
	if snap == nil {
		return market.PriceQuote{}, false
	}
	q, ok := snap.Equities[sym]
	if !ok {
		return market.PriceQuote{}, false
	}

	obs := market.Observation{Kind: market.KindEquity, Quote: &q}
	if err := c.validator.RelaxedObservation(&obs, c.nowFunc()); err != nil {
		log.Warn("snapshot quote rejected", "error", err, "symbol", sym)
		return market.PriceQuote{}, false
	}

	q.Source = market.SourceFileFallback
	q.IsFallback = true
	return q, true
}

// ratePrice quotes one USD in the requested currency.
func (c *Cascade) ratePrice(ctx context.Context, code string) market.PriceQuote {
	code = strings.ToUpper(strings.TrimSpace(code))
	t := c.Rates(ctx)

	rate, ok := t.Rate(code)
	if !ok || !rate.IsPositive() {
		hard := market.FallbackRates(c.nowFunc())
		rate, ok = hard.Rate(code)
		if !ok {
			return c.unavailableQuote(code)
		}
		t = hard
	}

	return market.PriceQuote{
		Symbol:      code,
		Value:       rate,
		Currency:    code,
		AsOf:        t.AsOf,
		Source:      t.Source,
		IsFallback:  t.IsFallback,
		CacheSource: t.CacheSource,
	}
}

func (c *Cascade) unavailableQuote(sym string) market.PriceQuote {
	return market.PriceQuote{
		Symbol:     sym,
		Currency:   "USD",
		AsOf:       c.nowFunc(),
		Source:     market.SourceUnavailable,
		IsFallback: true,
	}
}

// BreakerMetrics snapshots each kind's breaker for the status surface.
func (c *Cascade) BreakerMetrics() map[string]health.Metrics {
	out := make(map[string]health.Metrics, len(c.breakers))
	for k, br := range c.breakers {
		out[k.String()] = br.Metrics()
	}
	return out
}

// CacheSizes reports entries per kind, stale ones included.
func (c *Cascade) CacheSizes() map[string]int {
	return map[string]int{
		market.KindMetals.String(): c.metalsCache.Len(),
		market.KindRates.String():  c.ratesCache.Len(),
		market.KindEquity.String(): c.equityCache.Len(),
	}
}

// Sources lists the registered source names for kind.
func (c *Cascade) Sources(kind market.Kind) []string {
	return c.registry.Names(kind)
}

// SetNowFunc overrides the clock everywhere the cascade measures time: its
// own stamps, the caches, and the breakers. Tests only.
func (c *Cascade) SetNowFunc(fn func() time.Time) {
	c.nowFunc = fn
	c.metalsCache.SetNowFunc(fn)
	c.ratesCache.SetNowFunc(fn)
	c.equityCache.SetNowFunc(fn)
	for _, br := range c.breakers {
		br.SetNowFunc(fn)
	}
}

// SetSeedFunc pins the source-ordering seed. Tests only.
func (c *Cascade) SetSeedFunc(fn func() uint64) {
	c.seedFunc = fn
}

// SetSleepFunc replaces the backoff sleeper. Tests only.
func (c *Cascade) SetSleepFunc(fn func(context.Context, time.Duration) error) {
	c.sleep = fn
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
