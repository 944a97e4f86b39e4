// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert AMOUNT FROM TO",
		Short: "Convert an amount between currencies",
		Long: "Convert an amount using the freshest exchange rates the cascade can\n" +
			"produce, falling back to the pinned table when every source is down.\n" +
			"A pair neither table covers comes back unconverted, never as an error.",
		Args: cobra.ExactArgs(3),
		RunE: runConvert,
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(args[0]))
	if err != nil {
		return zrerr.Errorf(zrerr.CodeCLIInputInvalid, "amount %q is not a decimal number", args[0])
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "loading config")
	}
	p, err := wirePipeline(cfg, prometheus.NewRegistry())
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "wiring pipeline")
	}

	conv := p.cascade.Convert(cmd.Context(), amount, args[1], args[2])
	return printJSON(cmd.OutOrStdout(), conv)
}
