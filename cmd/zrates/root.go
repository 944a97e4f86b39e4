// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrabdussalam/zakat-rates/internal/config"
)

// NewRootCmd creates the root zrates command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zrates",
		Short: "Resilient metal, currency, and equity prices for Zakat calculations",
		Long: "zrates acquires gold and silver spot prices, exchange rates, and equity\n" +
			"quotes from free public sources, layering caches, circuit breakers, and\n" +
			"pinned fallback values so a calculation always gets an answer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newFetchCmd(),
		newConvertCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// setupLogging routes slog to stderr so stdout stays machine-readable for
// the one-shot commands. JSON by default; verbose switches to a human-friendly
// text handler at debug level.
func setupLogging(cmd *cobra.Command) {
	w := cmd.ErrOrStderr()
	var handler slog.Handler
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

// resolveConfigPath picks the config file for this invocation: the --config
// flag wins, otherwise the default location, bootstrapped with the commented
// template on first run. Empty means run on defaults alone.
func resolveConfigPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := config.BootstrapConfig(); path != "" {
		return path
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// loadConfig resolves and loads configuration, honoring the persistent
// --config and --data-dir flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := resolveConfigPath(cmd)
	config.WarnInsecurePermissions(path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	return cfg, nil
}

// printJSON writes v to w as indented JSON, the output format of the
// one-shot commands.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
