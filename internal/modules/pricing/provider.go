package pricing

import (
	"context"
	"errors"

	"github.com/aristath/holdings/internal/domain"
)

// ErrNoQuote is returned by a provider that does not cover a position
var ErrNoQuote = errors.New("no quote available")

// Provider fetches the latest market price of a position
type Provider interface {
	Name() string
	Quote(ctx context.Context, position domain.Position) (*Quote, error)
}

// NoopProvider never returns quotes. Used when PRICE_PROVIDER=none, so only
// manual prices are applied.
type NoopProvider struct{}

// Name returns the provider name
func (NoopProvider) Name() string { return "none" }

// Quote always fails with ErrNoQuote
func (NoopProvider) Quote(ctx context.Context, position domain.Position) (*Quote, error) {
	return nil, ErrNoQuote
}
