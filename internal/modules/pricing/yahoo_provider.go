package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/holdings/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

const yahooUserAgent = "Mozilla/5.0 (compatible; holdings/1.0)"

var errYahooNoResult = errors.New("yahoo: no chart result")

// YahooProvider reads the last traded price from the Yahoo Finance chart endpoint
type YahooProvider struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewYahooProvider creates a Yahoo provider. An empty baseURL selects the public API.
func NewYahooProvider(baseURL string, log zerolog.Logger) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string { return SourceYahoo }

// YahooSymbol maps a position to its Yahoo ticker. Crypto trades against the
// position currency (BTC-BRL), B3 listings take the .SA suffix, and asset types
// without an exchange quote report false.
func YahooSymbol(position domain.Position) (string, bool) {
	identifier := domain.NormalizeIdentifier(position.Identifier)
	if identifier == "" {
		return "", false
	}

	switch position.AssetType {
	case domain.AssetTypeFixedIncome, domain.AssetTypeFund, domain.AssetTypeOther:
		return "", false
	case domain.AssetTypeCrypto:
		if strings.Contains(identifier, "-") {
			return identifier, true
		}
		currency := position.Currency
		if currency == "" {
			currency = "USD"
		}
		return identifier + "-" + strings.ToUpper(currency), true
	}

	if strings.Contains(identifier, ".") || strings.ToUpper(position.Currency) != "BRL" {
		return identifier, true
	}
	return identifier + ".SA", true
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string              `json:"currency"`
				RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
				RegularMarketTime  int64               `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []decimal.NullDecimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote fetches the current price of a position
func (p *YahooProvider) Quote(ctx context.Context, position domain.Position) (*Quote, error) {
	symbol, ok := YahooSymbol(position)
	if !ok {
		return nil, ErrNoQuote
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", p.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: unknown symbol %s", ErrNoQuote, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode chart for %s: %w", symbol, err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w for %s", errYahooNoResult, symbol)
	}

	result := body.Chart.Result[0]
	price := result.Meta.RegularMarketPrice.Decimal
	at := result.Meta.RegularMarketTime

	if !result.Meta.RegularMarketPrice.Valid || !price.IsPositive() {
		price = decimal.Zero
		// fall back to the most recent non-empty close
		if len(result.Indicators.Quote) > 0 {
			closes := result.Indicators.Quote[0].Close
			for i := len(closes) - 1; i >= 0; i-- {
				if closes[i].Valid && closes[i].Decimal.IsPositive() {
					price = closes[i].Decimal
					if i < len(result.Timestamp) {
						at = result.Timestamp[i]
					}
					break
				}
			}
		}
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: no price in chart for %s", ErrNoQuote, symbol)
	}

	fetchedAt := time.Now().UTC()
	if at > 0 {
		fetchedAt = time.Unix(at, 0).UTC()
	}

	p.log.Debug().
		Str("symbol", symbol).
		Str("price", price.String()).
		Msg("Fetched quote")

	return &Quote{
		Identifier: domain.NormalizeIdentifier(position.Identifier),
		Price:      price,
		Currency:   strings.ToUpper(result.Meta.Currency),
		Source:     SourceYahoo,
		FetchedAt:  fetchedAt,
	}, nil
}
