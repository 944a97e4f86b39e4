// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrabdussalam/zakat-rates/internal/config"
	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Long: "Write the commented default configuration to ~/.config/zrates/zrates.yaml,\n" +
			"or to the path given with --config. An existing file is kept unless\n" +
			"--force is set. zrates runs fine without a config file; init exists so\n" +
			"there is something to edit.",
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "resolving config path")
		}
	}

	force, _ := cmd.Flags().GetBool("force")
	if err := config.WriteDefaultConfig(path, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Config written to %s\n\n", path)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  zrates start          start the daemon")
	_, _ = fmt.Fprintln(out, "  zrates fetch metals   try a one-shot fetch")
	_, _ = fmt.Fprintln(out, "  zrates doctor         verify the setup")

	return nil
}
