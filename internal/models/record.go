package models

import (
	"fmt"
	"time"
)

// Venue identifies the platform a market record was fetched from.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueProbable   Venue = "probable"
)

// MarketRecord is a normalized listing produced by an ingest adapter.
// Records are built once per refresh cycle and never mutated afterwards.
type MarketRecord struct {
	Venue    Venue  `json:"venue"`
	SourceID string `json:"source_id"`
	// CanonicalID is an identifier both venues may share (e.g. a condition id).
	// Empty when the venue does not expose one.
	CanonicalID     string     `json:"canonical_id,omitempty"`
	RawTitle        string     `json:"raw_title"`
	NormalizedKey   string     `json:"normalized_key"`
	OutcomeNames    []string   `json:"outcome_names"`
	OutcomePrices   []float64  `json:"outcome_prices"`
	OutcomeTokenIDs []string   `json:"outcome_token_ids,omitempty"`
	LiquidityUSD    float64    `json:"liquidity_usd"`
	Volume24hUSD    float64    `json:"volume_24h_usd"`
	Active          bool       `json:"active"`
	Closed          bool       `json:"closed"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

// Validate checks the alignment invariants between outcome slices.
func (r *MarketRecord) Validate() error {
	if r.SourceID == "" {
		return fmt.Errorf("record has no source id")
	}
	if len(r.OutcomeNames) < 2 {
		return fmt.Errorf("record %s: need at least 2 outcomes, got %d", r.SourceID, len(r.OutcomeNames))
	}
	if len(r.OutcomePrices) != len(r.OutcomeNames) {
		return fmt.Errorf("record %s: %d prices for %d outcomes", r.SourceID, len(r.OutcomePrices), len(r.OutcomeNames))
	}
	if len(r.OutcomeTokenIDs) > 0 && len(r.OutcomeTokenIDs) != len(r.OutcomeNames) {
		return fmt.Errorf("record %s: %d token ids for %d outcomes", r.SourceID, len(r.OutcomeTokenIDs), len(r.OutcomeNames))
	}
	for i, p := range r.OutcomePrices {
		if p < 0 || p > 1 {
			return fmt.Errorf("record %s: outcome %d price %.4f outside [0,1]", r.SourceID, i, p)
		}
	}
	if r.LiquidityUSD < 0 || r.Volume24hUSD < 0 {
		return fmt.Errorf("record %s: negative liquidity or volume", r.SourceID)
	}
	return nil
}

// TokenID returns the token for outcome idx, or "" when it is unknown.
func (r *MarketRecord) TokenID(idx int) string {
	if idx < 0 || idx >= len(r.OutcomeTokenIDs) {
		return ""
	}
	return r.OutcomeTokenIDs[idx]
}

// Key is the venue-qualified identity of a record.
func (r *MarketRecord) Key() string {
	return fmt.Sprintf("%s:%s", r.Venue, r.SourceID)
}

// Tradable reports whether the listing is open for trading.
func (r *MarketRecord) Tradable() bool {
	return r.Active && !r.Closed
}
