package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/aristath/holdings/internal/modules/portfolio"
)

type positionsCmd struct {
	all bool
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "list positions with their valuation" }
func (*positionsCmd) Usage() string {
	return `holdingsctl positions [-all]

  Lists open positions marked to the last known price, followed by the
  portfolio summary. Unpriced positions are valued at cost.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Include closed positions.")
}

func (c *positionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	valuations, err := container.PortfolioService.ListValuations(ctx, c.all)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	summary, err := container.PortfolioService.Summary(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "IDENTIFIER\tTYPE\tQUANTITY\tAVG PRICE\tINVESTED\tVALUE\tP&L\tWEIGHT\t")
	for _, v := range valuations {
		value := formatMoney(v.CurrentValue, v.Currency)
		if !v.MarketPriced {
			value += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			v.Identifier, v.AssetType, v.TotalQuantity,
			formatMoney(v.AveragePrice, v.Currency),
			formatMoney(v.TotalInvested, v.Currency),
			value,
			formatMoney(v.UnrealizedPnL, v.Currency),
			formatPercent(v.Weight))
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	currency := container.Config.DefaultCurrency
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Invested:   %s\n", formatMoney(summary.TotalInvested, currency))
	fmt.Fprintf(stdout, "Value:      %s (%s)\n", formatMoney(summary.CurrentValue, currency), formatPercent(summary.UnrealizedPnLPercent))
	fmt.Fprintf(stdout, "Realized:   %s\n", formatMoney(summary.RealizedPnL, currency))
	fmt.Fprintf(stdout, "Cash:       %s\n", formatMoney(summary.CashBalance, currency))
	fmt.Fprintf(stdout, "Net worth:  %s\n", formatMoney(summary.NetWorth, currency))
	if summary.UnpricedPositions > 0 {
		fmt.Fprintf(stdout, "* %d position(s) valued at cost\n", summary.UnpricedPositions)
	}
	return subcommands.ExitSuccess
}

type distributionCmd struct {
	by string
}

func (*distributionCmd) Name() string     { return "distribution" }
func (*distributionCmd) Synopsis() string { return "show how the portfolio value is distributed" }
func (*distributionCmd) Usage() string {
	return `holdingsctl distribution [-by asset_type|broker|currency]
`
}

func (c *distributionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.by, "by", string(portfolio.DimensionAssetType), "Grouping: asset_type, broker or currency.")
}

func (c *distributionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	dimension := portfolio.Dimension(strings.ToLower(c.by))
	if _, ok := dimension.KeyFunc(); !ok {
		fmt.Fprintf(os.Stderr, "unknown grouping %q\n", c.by)
		return subcommands.ExitUsageError
	}

	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	slices, err := container.PortfolioService.Distribution(ctx, dimension)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	currency := container.Config.DefaultCurrency
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\tPOSITIONS\tVALUE\tSHARE\t\n", strings.ToUpper(string(dimension)))
	for _, s := range slices {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n", s.Key, s.Count, formatMoney(s.Value, currency), formatPercent(s.Percentage))
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct{}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "check positions against the operation ledger" }
func (*reconcileCmd) Usage() string {
	return `holdingsctl reconcile [identifier...]

  Replays each identifier's operations and compares the result with the
  stored position. Exits non-zero when any position disagrees.
`
}

func (*reconcileCmd) SetFlags(*flag.FlagSet) {}

func (*reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	reports, err := container.Reconciler.Reconcile(ctx, f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	failed := 0
	for _, r := range reports {
		if r.OK {
			fmt.Fprintf(stdout, "ok    %s (%d operations)\n", r.Identifier, r.Operations)
			continue
		}
		failed++
		fmt.Fprintf(stdout, "DRIFT %s (%d operations)\n", r.Identifier, r.Operations)
		for _, d := range r.Drifts {
			fmt.Fprintf(stdout, "      %s: stored %s, ledger %s\n", d.Field, d.Stored, d.Replayed)
		}
		if r.ReplayError != "" {
			fmt.Fprintf(stdout, "      replay: %s\n", r.ReplayError)
		}
		if r.InvariantError != "" {
			fmt.Fprintf(stdout, "      invariant: %s\n", r.InvariantError)
		}
	}

	if failed > 0 {
		fmt.Fprintf(stdout, "%d of %d positions do not match their ledger\n", failed, len(reports))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
