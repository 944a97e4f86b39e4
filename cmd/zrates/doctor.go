// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/mrabdussalam/zakat-rates/internal/config"
	"github.com/mrabdussalam/zakat-rates/internal/store"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, daemon reachability, config, fallback snapshot, request quota, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", config.DefaultListen, "daemon address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	cfgPath := resolveConfigPath(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "loading config")
	}

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Daemon", func() string { return checkDaemon(addr) }},
		{"Config", func() string { return checkConfig(cfgPath) }},
		{"Snapshot", func() string { return checkSnapshot(cfg.SnapshotPath()) }},
		{"Quota", func() string { return checkQuota(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(cfg.Data.Dir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("zrates %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkDaemon(addr string) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := newDaemonClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if zrerr.HasCode(err, zrerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'zrates start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig(cfgPath string) string {
	if cfgPath != "" {
		return fmt.Sprintf("loaded from %s", cfgPath)
	}
	return "using defaults (no config file found)"
}

// checkSnapshot reports whether the warm-boot fallback file exists and how
// stale it is. Age matters: the cascade serves a snapshot at any age, so a
// months-old file means fetches have been failing for that long.
func checkSnapshot(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "no snapshot yet (written after the first successful metals fetch)"
		}
		return fmt.Sprintf("unable to check: %s", err)
	}
	age := time.Since(fi.ModTime()).Round(time.Minute)
	return fmt.Sprintf("present at %s, written %s ago", path, age)
}

func checkQuota(cfg *config.Config) string {
	mp := cfg.Sources.MetalPriceAPI
	if mp.APIKey == "" {
		return "metalprice-api not configured (no api key)"
	}
	if mp.MonthlyLimit <= 0 {
		return "metalprice-api configured, metering disabled"
	}

	counter, err := store.NewRequestCounter(cfg.CounterPath(), mp.MonthlyLimit)
	if err != nil {
		return fmt.Sprintf("unable to open counter: %s", err)
	}
	month, used, limit, err := counter.Usage()
	if err != nil {
		return fmt.Sprintf("unable to read counter: %s", err)
	}
	return fmt.Sprintf("metalprice-api %d/%d used in %s", used, limit, month)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home if the data dir has not been created yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
