// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package provider

import (
	"log/slog"
	"slices"
	"strconv"
	"sync"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// Budget caps how many live source attempts one cascade invocation may
// spend. Zero means unlimited. The cascade tracks its own attempt count and
// consults the budget before each attempt; the budget only enforces the
// limit.
type Budget struct {
	maxLiveAttempts int
}

// NewBudget creates a validated Budget. A zero limit disables enforcement.
func NewBudget(maxLiveAttempts int) (*Budget, error) {
	if maxLiveAttempts < 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"MaxLiveAttempts must be non-negative, got %d", maxLiveAttempts)
	}
	return &Budget{maxLiveAttempts: maxLiveAttempts}, nil
}

// MaxLiveAttempts returns the per-invocation attempt limit.
func (b *Budget) MaxLiveAttempts() int {
	return b.maxLiveAttempts
}

// CheckAttempts returns a budget error once used reaches the limit.
func (b *Budget) CheckAttempts(used int) error {
	return checkBudgetLimit(b.maxLiveAttempts, used, func(used, max int) string {
		return "live attempt budget exceeded: used " + strconv.Itoa(used) + " of " + strconv.Itoa(max)
	})
}

// CheckQuota returns a budget error once a metered upstream's monthly usage
// reaches its limit.
func CheckQuota(limit, used int64) error {
	return checkBudgetLimit(limit, used, func(used, max int64) string {
		return "monthly request quota exceeded: used " + strconv.FormatInt(used, 10) +
			" of " + strconv.FormatInt(max, 10)
	})
}

// checkBudgetLimit enforces a single max/used pair. A max of zero means the
// limit is not configured.
func checkBudgetLimit[T int | int64](max, used T, formatMsg func(used, max T) string) error {
	if max > 0 && used >= max {
		return zrerr.New(zrerr.CodeBudgetExceeded, formatMsg(used, max))
	}
	return nil
}

// Registry holds the source descriptors for every market data kind. Within
// a kind, sources keep registration order; an optional ordering table lets
// the cascade spread load across equivalent sources by walking them in a
// seed-selected order.
type Registry struct {
	mu        sync.RWMutex
	sources   map[market.Kind][]Source
	byName    map[string]Source
	orderings map[market.Kind][][]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:   make(map[market.Kind][]Source),
		byName:    make(map[string]Source),
		orderings: make(map[market.Kind][][]int),
	}
}

// Register adds a source descriptor. Names are unique across kinds.
func (r *Registry) Register(src Source) error {
	if src == nil || src.Name() == "" {
		return zrerr.New(zrerr.CodeConfigValidateInvalidValue, "source must have a name")
	}
	if !src.Kind().Valid() {
		return zrerr.Errorf(zrerr.CodeKindInvalid, "source %s has invalid kind %q", src.Name(), src.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[src.Name()]; ok {
		return zrerr.New(
			zrerr.CodeSourceDuplicate,
			"source already registered: "+src.Name(),
			zrerr.FieldSource(src.Name()),
		)
	}
	r.byName[src.Name()] = src
	r.sources[src.Kind()] = append(r.sources[src.Kind()], src)
	return nil
}

// Get retrieves a source by name.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.byName[name]
	if !ok {
		return nil, zrerr.New(
			zrerr.CodeSourceNotFound,
			"source not found: "+name,
			zrerr.FieldSource(name),
		)
	}
	return src, nil
}

// Names lists registered source names for a kind in registration order.
func (r *Registry) Names(kind market.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sources[kind]))
	for _, src := range r.sources[kind] {
		out = append(out, src.Name())
	}
	return out
}

// Count reports how many sources are registered for a kind.
func (r *Registry) Count(kind market.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources[kind])
}

// SetOrderings installs the fixed walk orders for a kind. Every row must be
// a permutation of the indices of the sources registered for that kind at
// call time, so register all sources first.
func (r *Registry) SetOrderings(kind market.Kind, orderings [][]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sources[kind])
	for i, ord := range orderings {
		if len(ord) != n {
			return zrerr.Errorf(zrerr.CodeOrderingInvalid,
				"ordering %d has length %d, want %d for kind %s", i, len(ord), n, kind)
		}
		seen := make([]bool, n)
		for _, idx := range ord {
			if idx < 0 || idx >= n || seen[idx] {
				return zrerr.Errorf(zrerr.CodeOrderingInvalid,
					"ordering %d is not a permutation of 0..%d", i, n-1)
			}
			seen[idx] = true
		}
	}
	r.orderings[kind] = append([][]int(nil), orderings...)
	return nil
}

// Ordered returns the sources for kind in the walk order selected by seed.
// With no ordering table the registration order is used. The seed picks one
// ordering by modulo; the cascade draws seeds uniformly per invocation, so
// over many calls every ordering leads equally often.
func (r *Registry) Ordered(kind market.Kind, seed uint64) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.sources[kind]
	ords := r.orderings[kind]
	if len(ords) == 0 {
		return slices.Clone(list)
	}

	ord := ords[seed%uint64(len(ords))]
	if len(ord) != len(list) {
		// A source was registered after SetOrderings; the table no longer
		// applies.
		slog.Warn("source ordering table out of date, using registration order",
			"kind", kind, "sources", len(list), "ordering_len", len(ord))
		return slices.Clone(list)
	}

	out := make([]Source, 0, len(ord))
	for _, idx := range ord {
		out = append(out, list[idx])
	}
	return out
}

// Rotations builds the n cyclic rotations of 0..n-1. The metals kind uses
// these as its ordering table: each cascade call starts the walk at a
// different source while preserving relative order.
func Rotations(n int) [][]int {
	if n <= 0 {
		return nil
	}
	out := make([][]int, 0, n)
	for start := 0; start < n; start++ {
		ord := make([]int, 0, n)
		for i := 0; i < n; i++ {
			ord = append(ord, (start+i)%n)
		}
		out = append(out, ord)
	}
	return out
}
