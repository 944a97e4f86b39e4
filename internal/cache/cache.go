// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package cache implements the in-memory price cache. Entries expire lazily:
// a stale entry stays in the map until overwritten and can still be served
// through a relaxed read when every live source is down.
package cache

import (
	"sync"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// EmergencyMaxAge is the staleness bound for relaxed reads. An entry older
// than this is not served even when all upstreams are failing.
const EmergencyMaxAge = 24 * time.Hour

type entry[T any] struct {
	payload  T
	storedAt time.Time
}

// Store is a TTL cache for one payload type. The zero value is not usable;
// construct with NewStore.
type Store[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[T]
	nowFunc func() time.Time
}

// NewStore creates a Store whose entries are fresh for ttl.
func NewStore[T any](ttl time.Duration) (*Store[T], error) {
	if ttl <= 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"cache ttl must be positive, got %s", ttl)
	}
	return &Store[T]{
		ttl:     ttl,
		entries: make(map[string]entry[T]),
		nowFunc: time.Now,
	}, nil
}

// Get returns the payload for key if it is within the fresh TTL.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || s.age(e) > s.ttl {
		var zero T
		return zero, false
	}
	return e.payload, true
}

// GetRelaxed returns the payload for key if it was stored within maxAge,
// regardless of the fresh TTL, along with when it was stored. Used by the
// emergency tier after live sources are exhausted.
func (s *Store[T]) GetRelaxed(key string, maxAge time.Duration) (T, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || s.age(e) > maxAge {
		var zero T
		return zero, time.Time{}, false
	}
	return e.payload, e.storedAt, true
}

// Set stores payload under key, stamped now. Overwrite is the only way an
// entry is ever replaced.
func (s *Store[T]) Set(key string, payload T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{payload: payload, storedAt: s.nowFunc()}
}

// Valid reports whether key holds an entry within the fresh TTL.
func (s *Store[T]) Valid(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return ok && s.age(e) <= s.ttl
}

// Reset drops every entry, forcing the next read through the full cascade.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry[T])
}

// Len reports how many entries the store holds, fresh or stale.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TTL returns the fresh-entry lifetime.
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// SetNowFunc overrides the clock. Tests only.
func (s *Store[T]) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = f
}

func (s *Store[T]) age(e entry[T]) time.Duration {
	return s.nowFunc().Sub(e.storedAt)
}
