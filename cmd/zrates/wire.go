// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrabdussalam/zakat-rates/internal/cascade"
	"github.com/mrabdussalam/zakat-rates/internal/config"
	"github.com/mrabdussalam/zakat-rates/internal/httpx"
	"github.com/mrabdussalam/zakat-rates/internal/metrics"
	"github.com/mrabdussalam/zakat-rates/internal/provider"
	"github.com/mrabdussalam/zakat-rates/internal/provider/equity"
	"github.com/mrabdussalam/zakat-rates/internal/provider/metals"
	"github.com/mrabdussalam/zakat-rates/internal/provider/rates"
	"github.com/mrabdussalam/zakat-rates/internal/server"
	"github.com/mrabdussalam/zakat-rates/internal/store"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// Daemon bundles the subsystems behind zrates start.
type Daemon struct {
	Server  *server.Server
	Cascade *cascade.Cascade

	// Counter is nil unless the metered metals source is configured.
	Counter *store.RequestCounter

	// Metrics is the daemon's private registry, served at /metrics.
	Metrics *prometheus.Registry
}

// pipeline is the acquisition stack shared by the daemon and the one-shot
// commands.
type pipeline struct {
	cascade *cascade.Cascade
	counter *store.RequestCounter
}

// WireDaemon builds the full daemon: acquisition pipeline, HTTP API, and a
// per-daemon metrics registry. Nothing listens until Start is called.
func WireDaemon(cfg *config.Config) (*Daemon, error) {
	promReg := prometheus.NewRegistry()

	p, err := wirePipeline(cfg, promReg)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Gatherer: promReg,
	})
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "building server")
	}

	var services *server.Services
	if p.counter != nil {
		services, err = server.NewServices(p.cascade, p.cascade, p.counter)
	} else {
		services, err = server.NewServices(p.cascade, p.cascade)
	}
	if err != nil {
		_ = srv.Close()
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "building services")
	}
	srv.RegisterServices(services)

	return &Daemon{
		Server:  srv,
		Cascade: p.cascade,
		Counter: p.counter,
		Metrics: promReg,
	}, nil
}

// Start serves HTTP until ctx is canceled.
func (d *Daemon) Start(ctx context.Context) error {
	return d.Server.Start(ctx)
}

// Close releases the daemon's resources.
func (d *Daemon) Close() error {
	return d.Server.Close()
}

// wirePipeline assembles the acquisition stack in dependency order.
func wirePipeline(cfg *config.Config, promReg prometheus.Registerer) (*pipeline, error) {
	// 1. Data directory for the durable fallback files.
	if err := os.MkdirAll(cfg.Data.Dir, 0o700); err != nil {
		return nil, zrerr.Wrapf(err, zrerr.CodeCLISetupFailure, "creating data directory %s", cfg.Data.Dir)
	}

	// 2. Durable stores: the warm-boot snapshot plus the monthly request
	// counter for the metered metals source, when one is configured.
	snapshots, err := store.NewSnapshotStore(cfg.SnapshotPath())
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "opening snapshot store")
	}

	var counter *store.RequestCounter
	if mp := cfg.Sources.MetalPriceAPI; mp.APIKey != "" && mp.MonthlyLimit > 0 {
		counter, err = store.NewRequestCounter(cfg.CounterPath(), mp.MonthlyLimit)
		if err != nil {
			return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "opening request counter")
		}
	}

	// 3. Live-fetch machinery.
	fetcher, err := provider.NewFetcher(httpx.New(cfg.Fetch.Timeout), cfg.Fetch.Timeout)
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "creating fetcher")
	}

	// 4. Source registry. Metals sources rotate their starting point per
	// fetch; rates and equity keep fixed priority.
	registry := provider.NewRegistry()
	if err := registerSources(registry, cfg, counter, promReg); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "registering sources")
	}
	rotations := provider.Rotations(registry.Count(market.KindMetals))
	if err := registry.SetOrderings(market.KindMetals, rotations); err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "setting metals rotations")
	}

	// 5. Validation and the cascade itself.
	validator, err := market.NewValidator()
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "creating validator")
	}

	casc, err := cascade.New(cascade.Config{
		Registry:         registry,
		Fetcher:          fetcher,
		Validator:        validator,
		Snapshots:        snapshots,
		Metrics:          metrics.New(promReg),
		MetalsTTL:        cfg.Cache.MetalsTTL,
		RatesTTL:         cfg.Cache.RatesTTL,
		EquityTTL:        cfg.Cache.EquityTTL,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		RetryAttempts:    cfg.Fetch.RetryAttempts,
		RetryBaseDelay:   cfg.Fetch.RetryBaseDelay,
	})
	if err != nil {
		return nil, zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "building cascade")
	}

	return &pipeline{cascade: casc, counter: counter}, nil
}

// registerSources fills the registry in cascade priority order: within a
// kind the walk tries sources in registration order. metalprice-api joins
// last, and only when a key is configured, so the free sources always get
// first crack at a fetch.
func registerSources(reg *provider.Registry, cfg *config.Config, counter *store.RequestCounter, promReg prometheus.Registerer) error {
	srcs := []provider.Source{
		metals.NewGoldPrice(""),
		metals.NewMetalsLive(""),
		metals.NewStooq(""),
		rates.NewCDN(""),
		rates.NewCDNFallback(""),
		rates.NewFrankfurter(""),
		rates.NewOpenERAPI(""),
		equity.NewYahooChart(""),
		equity.NewStooqQuote(""),
	}

	if key := cfg.Sources.MetalPriceAPI.APIKey; key != "" {
		metered, err := metals.NewMetalPriceAPI("", key, counter)
		if err != nil {
			return err
		}
		if counter != nil {
			metrics.RegisterQuotaGauge(promReg, metered.Name(), func() float64 {
				_, used, _, err := counter.Usage()
				if err != nil {
					return 0
				}
				return float64(used)
			})
		}
		srcs = append(srcs, metered)
	}

	for _, src := range srcs {
		if err := reg.Register(src); err != nil {
			return err
		}
	}
	return nil
}
