// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrabdussalam/zakat-rates/internal/config"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/health"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's pipeline state",
		Long:  "Query a running zrates daemon and display breaker, cache, and quota state per data kind.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", config.DefaultListen, "daemon address to query")

	return cmd
}

// statusResponse mirrors the daemon's /api/v1/status body.
type statusResponse struct {
	Status   string                    `json:"status"`
	Breakers map[string]health.Metrics `json:"breakers"`
	Caches   map[string]int            `json:"caches"`
	Sources  map[string][]string       `json:"sources"`
	Quota    *struct {
		Month string `json:"month"`
		Used  int64  `json:"used"`
		Limit int64  `json:"limit"`
	} `json:"quota"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body statusResponse
	if err := newDaemonClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if zrerr.HasCode(err, zrerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Daemon at %s is not running (run 'zrates start')\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Daemon at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Daemon at %s: %s\n", addr, body.Status)
	for _, kind := range market.Kinds() {
		key := kind.String()
		br, ok := body.Breakers[key]
		if !ok {
			continue
		}

		state := "closed"
		if !br.Available {
			state = "open"
		}
		_, _ = fmt.Fprintf(out, "  %-8s breaker %s (%d consecutive failures), %d cached, sources: %s\n",
			key, state, br.FailureCount, body.Caches[key], strings.Join(body.Sources[key], ", "))
	}
	if q := body.Quota; q != nil {
		_, _ = fmt.Fprintf(out, "  metalprice-api quota: %d/%d used in %s\n", q.Used, q.Limit, q.Month)
	}

	return nil
}
