// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the zrates daemon",
		Long:  "Load configuration, wire the acquisition pipeline, and serve the HTTP API until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "loading config")
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	d, err := WireDaemon(cfg)
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "wiring daemon")
	}
	defer func() { _ = d.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting zrates",
		"listen", cfg.Server.Listen,
		"data_dir", cfg.Data.Dir,
		"metered_source", d.Counter != nil,
		"version", version,
	)

	return d.Start(ctx)
}
