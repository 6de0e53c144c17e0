package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/di"
	"github.com/aristath/holdings/pkg/logger"
)

// stdout receives command output; tests replace it
var stdout io.Writer = os.Stdout

// openContainer wires the same databases and services the server uses.
// The scheduler is registered but never started.
func openContainer() (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  "warn",
		Pretty: true,
		Output: os.Stderr,
	})

	return di.Wire(cfg, log)
}

// parseDecimal parses a required decimal flag
func parseDecimal(name, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, fmt.Errorf("-%s is required", name)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid -%s %q: %w", name, value, err)
	}
	return d, nil
}

// parseOptionalDecimal parses a decimal flag that defaults to zero
func parseOptionalDecimal(name, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(name, value)
}

// parseDate parses a YYYY-MM-DD flag. Empty means now.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t.UTC(), nil
}

// formatMoney renders an amount with its currency symbol, rounded to the
// currency's minor unit. Unknown currencies fall back to "<amount> <code>".
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.String() + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// formatPercent renders a percentage with two decimals
func formatPercent(p decimal.Decimal) string {
	return p.StringFixed(2) + "%"
}
