// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package store persists the two pieces of durable state the acquisition
// layer keeps: the last-known-good fallback snapshot and the monthly request
// counter for the metered upstream. Both are plain JSON files read and
// written wholesale.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

// Snapshot is the durable floor beneath the in-memory cache: the first
// successfully fetched value of each kind, written once and then left
// untouched so a value survives restarts and long outages.
type Snapshot struct {
	Metals   *market.MetalPrices          `json:"metals,omitempty"`
	Equities map[string]market.PriceQuote `json:"equities,omitempty"`
	SavedAt  time.Time                    `json:"saved_at"`
}

// SnapshotStore owns the snapshot file. All methods are safe for concurrent
// use; the file is only ever rewritten under the store's lock.
type SnapshotStore struct {
	mu      sync.Mutex
	path    string
	nowFunc func() time.Time
}

// NewSnapshotStore creates a store backed by the JSON file at path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, zrerr.New(zrerr.CodeConfigValidateInvalidValue, "snapshot path must not be empty")
	}
	return &SnapshotStore{path: path, nowFunc: time.Now}, nil
}

// Load reads the snapshot file. A missing file is not an error: it returns
// (nil, nil) so the cascade can fall through to the constant tier.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// SaveMetalsIfAbsent writes m into the snapshot only when no metals section
// exists yet. Returns whether a write happened.
func (s *SnapshotStore) SaveMetalsIfAbsent(m market.MetalPrices) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	if snap.Metals != nil {
		return false, nil
	}

	snap.Metals = &m
	if err := s.writeLocked(snap); err != nil {
		return false, err
	}
	return true, nil
}

// SaveEquityIfAbsent writes q into the snapshot only when its symbol has no
// entry yet. Returns whether a write happened.
func (s *SnapshotStore) SaveEquityIfAbsent(q market.PriceQuote) (bool, error) {
	if q.Symbol == "" {
		return false, zrerr.New(zrerr.CodeStoreSnapshotWriteFailure, "equity quote has no symbol")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	if _, ok := snap.Equities[q.Symbol]; ok {
		return false, nil
	}

	if snap.Equities == nil {
		snap.Equities = make(map[string]market.PriceQuote, 1)
	}
	snap.Equities[q.Symbol] = q
	if err := s.writeLocked(snap); err != nil {
		return false, err
	}
	return true, nil
}

// Path returns the backing file location.
func (s *SnapshotStore) Path() string { return s.path }

// SetNowFunc overrides the clock. Tests only.
func (s *SnapshotStore) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = f
}

func (s *SnapshotStore) loadLocked() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zrerr.Wrapf(err, zrerr.CodeStoreSnapshotLoadFailure,
			"reading snapshot %s", s.path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, zrerr.Wrapf(err, zrerr.CodeStoreSnapshotInvalidFormat,
			"decoding snapshot %s", s.path)
	}
	return &snap, nil
}

func (s *SnapshotStore) writeLocked(snap *Snapshot) error {
	snap.SavedAt = s.nowFunc()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreSnapshotWriteFailure,
			"encoding snapshot")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreSnapshotWriteFailure,
			"creating snapshot directory")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreSnapshotWriteFailure,
			"writing snapshot %s", s.path)
	}
	return nil
}
