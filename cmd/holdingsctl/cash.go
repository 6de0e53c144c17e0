package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/aristath/holdings/internal/di"
	"github.com/aristath/holdings/internal/domain"
)

type cashFlags struct {
	account     string
	amount      string
	description string
}

func (c *cashFlags) set(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Cash account. Defaults to DEFAULT_ACCOUNT.")
	f.StringVar(&c.amount, "amount", "", "Amount to move.")
	f.StringVar(&c.description, "desc", "", "Description recorded with the movement.")
}

type movement func(ctx context.Context, container *di.Container, accountID string, amount decimal.Decimal, description string) (*domain.CashFlow, error)

func (c *cashFlags) run(ctx context.Context, verb string, move movement) subcommands.ExitStatus {
	amount, err := parseDecimal("amount", c.amount)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	container, err := openContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	accountID := c.account
	if accountID == "" {
		accountID = container.Config.DefaultAccount
	}

	flow, err := move(ctx, container, accountID, amount, c.description)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	currency := container.Config.DefaultCurrency
	if account, err := container.CashService.GetAccount(ctx, flow.AccountID); err == nil && account != nil {
		currency = account.Currency
	}

	fmt.Fprintf(stdout, "%s %s on %s. Balance: %s\n", verb,
		formatMoney(flow.Amount.Abs(), currency), flow.AccountID,
		formatMoney(flow.BalanceAfter, currency))
	return subcommands.ExitSuccess
}

type depositCmd struct {
	cashFlags
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "credit cash to an account" }
func (*depositCmd) Usage() string {
	return `holdingsctl deposit -amount <a> [-account <id>] [-desc <text>]
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) { c.cashFlags.set(f) }

func (c *depositCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, "Deposited", func(ctx context.Context, container *di.Container, accountID string, amount decimal.Decimal, description string) (*domain.CashFlow, error) {
		return container.CashService.Deposit(ctx, accountID, amount, description)
	})
}

type withdrawCmd struct {
	cashFlags
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "debit cash from an account" }
func (*withdrawCmd) Usage() string {
	return `holdingsctl withdraw -amount <a> [-account <id>] [-desc <text>]
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) { c.cashFlags.set(f) }

func (c *withdrawCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, "Withdrew", func(ctx context.Context, container *di.Container, accountID string, amount decimal.Decimal, description string) (*domain.CashFlow, error) {
		return container.CashService.Withdraw(ctx, accountID, amount, description)
	})
}
