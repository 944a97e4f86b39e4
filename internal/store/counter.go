// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// counterFile is the on-disk shape of the monthly request counter.
type counterFile struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// RequestCounter enforces a per-calendar-month request quota for a metered
// upstream. The count persists across restarts; a new month resets it.
type RequestCounter struct {
	mu      sync.Mutex
	path    string
	limit   int64
	nowFunc func() time.Time
}

// NewRequestCounter creates a counter backed by the JSON file at path,
// admitting at most limit requests per month.
func NewRequestCounter(path string, limit int64) (*RequestCounter, error) {
	if path == "" {
		return nil, zrerr.New(zrerr.CodeConfigValidateInvalidValue, "counter path must not be empty")
	}
	if limit <= 0 {
		return nil, zrerr.Errorf(zrerr.CodeConfigValidateInvalidValue,
			"monthly request limit must be positive, got %d", limit)
	}
	return &RequestCounter{path: path, limit: limit, nowFunc: time.Now}, nil
}

// TryAcquire consumes one unit of this month's quota. It returns false
// without consuming anything once the limit is reached. The check and the
// increment are atomic under the counter's lock.
func (c *RequestCounter) TryAcquire() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.loadLocked()
	if err != nil {
		return false, err
	}

	month := c.currentMonth()
	if f.Month != month {
		f = counterFile{Month: month}
	}
	if f.Count >= c.limit {
		return false, nil
	}

	f.Count++
	if err := c.writeLocked(f); err != nil {
		return false, err
	}
	return true, nil
}

// Usage reports the current month, how much of the quota is consumed, and
// the configured limit.
func (c *RequestCounter) Usage() (string, int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.loadLocked()
	if err != nil {
		return "", 0, c.limit, err
	}

	month := c.currentMonth()
	if f.Month != month {
		return month, 0, c.limit, nil
	}
	return month, f.Count, c.limit, nil
}

// Path returns the backing file location.
func (c *RequestCounter) Path() string { return c.path }

// SetNowFunc overrides the clock. Tests only.
func (c *RequestCounter) SetNowFunc(f func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFunc = f
}

func (c *RequestCounter) currentMonth() string {
	return c.nowFunc().UTC().Format("2006-01")
}

func (c *RequestCounter) loadLocked() (counterFile, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return counterFile{}, nil
	}
	if err != nil {
		return counterFile{}, zrerr.Wrapf(err, zrerr.CodeStoreCounterLoadFailure,
			"reading request counter %s", c.path)
	}

	var f counterFile
	if err := json.Unmarshal(data, &f); err != nil {
		// A corrupt counter file must not permanently disable the metered
		// source; start the month over.
		return counterFile{}, nil
	}
	return f, nil
}

func (c *RequestCounter) writeLocked(f counterFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreCounterWriteFailure, "encoding request counter")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreCounterWriteFailure, "creating counter directory")
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return zrerr.Wrapf(err, zrerr.CodeStoreCounterWriteFailure,
			"writing request counter %s", c.path)
	}
	return nil
}
