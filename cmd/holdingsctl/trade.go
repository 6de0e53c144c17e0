package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/aristath/holdings/internal/modules/trading"
)

type tradeFlags struct {
	identifier string
	quantity   string
	price      string
	fees       string
	date       string
	account    string
	notes      string
}

func (t *tradeFlags) set(f *flag.FlagSet) {
	f.StringVar(&t.identifier, "id", "", "Asset identifier (ticker), e.g. ITSA4.")
	f.StringVar(&t.quantity, "qty", "", "Quantity traded.")
	f.StringVar(&t.price, "price", "", "Unit price.")
	f.StringVar(&t.fees, "fees", "", "Brokerage fees. Defaults to 0.")
	f.StringVar(&t.date, "d", "", "Trade date (YYYY-MM-DD). Defaults to now.")
	f.StringVar(&t.account, "account", "", "Cash account to settle against. Defaults to DEFAULT_ACCOUNT.")
	f.StringVar(&t.notes, "notes", "", "Free-form notes.")
}

type buyCmd struct {
	tradeFlags
	name      string
	assetType string
	broker    string
	currency  string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record a purchase" }
func (*buyCmd) Usage() string {
	return `holdingsctl buy -id <identifier> -qty <n> -price <p> [-fees <f>] [-type <asset_type>] [-d <date>]

  Records a purchase, updates the weighted average price and debits the account.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	c.tradeFlags.set(f)
	f.StringVar(&c.name, "name", "", "Display name of the asset.")
	f.StringVar(&c.assetType, "type", "", "Asset type (stock, fii, etf, fixed_income, crypto, fund, other).")
	f.StringVar(&c.broker, "broker", "", "Broker holding the position.")
	f.StringVar(&c.currency, "currency", "", "Position currency. Defaults to the account currency.")
}

func (c *buyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req := trading.BuyRequest{
		Identifier: c.identifier,
		AccountID:  c.account,
		Name:       c.name,
		AssetType:  c.assetType,
		Broker:     c.broker,
		Currency:   c.currency,
		Notes:      c.notes,
	}

	var err error
	if req.Quantity, err = parseDecimal("qty", c.quantity); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.UnitPrice, err = parseDecimal("price", c.price); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.Fees, err = parseOptionalDecimal("fees", c.fees); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.Date, err = parseDate(c.date); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	result, err := container.TradingService.Buy(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	p := result.Position
	fmt.Fprintf(stdout, "Bought %s %s at %s. Position: %s @ %s (invested %s)\n",
		result.Operation.Quantity, p.Identifier,
		formatMoney(result.Operation.UnitPrice, p.Currency),
		p.TotalQuantity, formatMoney(p.AveragePrice, p.Currency),
		formatMoney(p.TotalInvested, p.Currency))
	return subcommands.ExitSuccess
}

type sellCmd struct {
	tradeFlags
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record a sale" }
func (*sellCmd) Usage() string {
	return `holdingsctl sell -id <identifier> -qty <n> -price <p> [-fees <f>] [-d <date>]

  Records a sale, realizes profit or loss against the average price and
  credits the net proceeds to the account.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	c.tradeFlags.set(f)
}

func (c *sellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req := trading.SellRequest{
		Identifier: c.identifier,
		AccountID:  c.account,
		Notes:      c.notes,
	}

	var err error
	if req.Quantity, err = parseDecimal("qty", c.quantity); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.UnitPrice, err = parseDecimal("price", c.price); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.Fees, err = parseOptionalDecimal("fees", c.fees); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if req.Date, err = parseDate(c.date); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	result, err := container.TradingService.Sell(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	p := result.Position
	fmt.Fprintf(stdout, "Sold %s %s at %s.", result.Operation.Quantity, p.Identifier,
		formatMoney(result.Operation.UnitPrice, p.Currency))
	if result.Sale != nil {
		fmt.Fprintf(stdout, " Net %s, P&L %s.", formatMoney(result.Sale.NetValue, p.Currency),
			formatMoney(result.Sale.ProfitLoss, p.Currency))
		if result.Sale.Closed {
			fmt.Fprint(stdout, " Position closed.")
		}
	}
	fmt.Fprintln(stdout)
	return subcommands.ExitSuccess
}
