// Package pricing keeps position market prices current from an external quote
// provider, with a TTL cache in cache.db and manual overrides.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote sources
const (
	SourceManual = "manual"
	SourceYahoo  = "yahoo"
)

// TTL constants, added to time.Now() when storing to calculate expires_at
const (
	TTLQuote       = 10 * time.Minute   // Provider quotes, shorter than the sync interval
	TTLManualQuote = 24 * time.Hour     // User-supplied prices win over the provider for a day
	StaleRetention = 7 * 24 * time.Hour // Expired quotes kept as fallback before cleanup
)

// Quote is a market price observation for one identifier
type Quote struct {
	Identifier string          `json:"identifier"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency,omitempty"`
	Source     string          `json:"source"`
	FetchedAt  time.Time       `json:"fetched_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// SyncResult summarizes one SyncPrices run
type SyncResult struct {
	Updated int `json:"updated"` // Prices written from a fresh provider quote
	Cached  int `json:"cached"`  // Prices written from a still-fresh cached quote
	Skipped int `json:"skipped"` // Positions the provider has no quote for
	Failed  int `json:"failed"`  // Provider errors; the previous price is kept
}
