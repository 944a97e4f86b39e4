// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
	"github.com/mrabdussalam/zakat-rates/pkg/market"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch {metals|rates|equity} [symbol]",
		Short: "Run the acquisition cascade once and print the result as JSON",
		Long: "Fetch one data kind through the local cascade and print it to stdout.\n" +
			"Equity requires a ticker symbol; metals and rates take none.\n\n" +
			"The command never fails on upstream trouble: when every source is down\n" +
			"the output is a fallback value tagged with its provenance.",
		Args: cobra.RangeArgs(1, 2),
		RunE: runFetch,
	}

	cmd.Flags().String("currency", "", "convert prices into this currency (metals and equity)")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	kind, err := market.ParseKind(args[0])
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLIInputInvalid, "parsing data kind")
	}

	symbol := ""
	if len(args) > 1 {
		symbol = args[1]
	}
	if kind == market.KindEquity && symbol == "" {
		return zrerr.New(zrerr.CodeCLIInputInvalid,
			"equity needs a ticker symbol, e.g. 'zrates fetch equity AAPL'")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "loading config")
	}
	p, err := wirePipeline(cfg, prometheus.NewRegistry())
	if err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLISetupFailure, "wiring pipeline")
	}

	ctx := cmd.Context()
	currency, _ := cmd.Flags().GetString("currency")

	var result any
	switch kind {
	case market.KindMetals:
		if currency == "" {
			result = p.cascade.Metals(ctx)
		} else {
			result = struct {
				Gold   market.PriceQuote `json:"gold"`
				Silver market.PriceQuote `json:"silver"`
			}{
				Gold:   p.cascade.Price(ctx, market.KindMetals, "gold", currency),
				Silver: p.cascade.Price(ctx, market.KindMetals, "silver", currency),
			}
		}
	case market.KindRates:
		result = p.cascade.Rates(ctx)
	case market.KindEquity:
		result = p.cascade.Price(ctx, market.KindEquity, symbol, currency)
	}

	return printJSON(cmd.OutOrStdout(), result)
}
