// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// RateLimitConfig configures per-IP request limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. Zero disables
	// limiting entirely.
	RequestsPerSecond float64
	// Burst is the bucket size per IP, the number of requests an idle client
	// may send at once.
	Burst int
	// MaxVisitors caps how many client IPs are tracked concurrently; the
	// oldest entries are evicted past the cap. Defaults to 10000.
	MaxVisitors int
}

// Validate checks the limiter configuration and applies the MaxVisitors
// default.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return zrerr.Errorf(zrerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return zrerr.Errorf(zrerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return zrerr.Errorf(zrerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

// bucket is one client's token bucket state.
type bucket struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

// visitors tracks token buckets keyed by client IP.
type visitors struct {
	mu    sync.Mutex
	rate  float64
	burst float64
	max   int
	m     map[string]*bucket
}

// take refills and consumes one token for ip, reporting whether the request
// is admitted.
func (v *visitors) take(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, ok := v.m[ip]
	if !ok {
		b = &bucket{tokens: v.burst, lastRefill: now}
		v.m[ip] = b
	}
	b.lastSeen = now

	b.tokens += now.Sub(b.lastRefill).Seconds() * v.rate
	if b.tokens > v.burst {
		b.tokens = v.burst
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle longer than staleAfter, then enforces the visitor
// cap by evicting the oldest remaining entries.
func (v *visitors) sweep(now time.Time, staleAfter time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	type seen struct {
		ip string
		at time.Time
	}
	kept := make([]seen, 0, len(v.m))
	for ip, b := range v.m {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(v.m, ip)
			continue
		}
		kept = append(kept, seen{ip: ip, at: b.lastSeen})
	}

	if v.max <= 0 || len(kept) <= v.max {
		return
	}
	slices.SortFunc(kept, func(a, b seen) int { return a.at.Compare(b.at) })
	evict := len(kept) - v.max
	for _, s := range kept[:evict] {
		delete(v.m, s.ip)
	}
	slog.Warn("rate limiter visitor cap enforced",
		"evicted", evict, "max_visitors", v.max, "tracked", len(v.m))
}

// rateLimitMiddleware enforces a per-IP token bucket. A zero rate returns a
// pass-through middleware. The done channel stops the sweep goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	v := &visitors{
		rate:  cfg.RequestsPerSecond,
		burst: float64(cfg.Burst),
		max:   cfg.MaxVisitors,
		m:     make(map[string]*bucket),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v.sweep(time.Now(), 10*time.Minute)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Buckets are keyed by IP, not by connection; clients rotating
			// ephemeral ports share one bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !v.take(ip, time.Now()) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("writing rate limit response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
