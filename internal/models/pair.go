package models

import (
	"fmt"

	"github.com/hetulpatel/crossarb/internal/hashutil"
)

// MatchMethod records which matcher pass produced a pair.
type MatchMethod string

const (
	MatchExactID    MatchMethod = "EXACT_ID"
	MatchExactTitle MatchMethod = "EXACT_TITLE"
	MatchFuzzy      MatchMethod = "FUZZY"
)

// MatchedPair aligns one Source A record with one Source B record.
type MatchedPair struct {
	A      MarketRecord `json:"record_a"`
	B      MarketRecord `json:"record_b"`
	Method MatchMethod  `json:"match_method"`
	Score  float64      `json:"match_score"`
}

// ID is an order-independent identifier for the pair.
func (p *MatchedPair) ID() string {
	return hashutil.UnorderedKey(p.A.Key(), p.B.Key())
}

func (p *MatchedPair) String() string {
	return fmt.Sprintf("%s <-> %s (%s %.1f)", p.A.Key(), p.B.Key(), p.Method, p.Score)
}

// OrderBookLevel is one ask level. Only the ask side is modeled.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OutcomeQuote is the resolved live price for one outcome token.
// Tradable is false when the token id is unknown, the book could not be
// fetched, or the book has no asks; BestAsk is then meaningless.
type OutcomeQuote struct {
	Outcome  string           `json:"outcome"`
	TokenID  string           `json:"token_id,omitempty"`
	BestAsk  float64          `json:"best_ask"`
	Asks     []OrderBookLevel `json:"asks,omitempty"`
	Tradable bool             `json:"tradable"`
}

// EnrichedPair carries live quotes for every outcome of both sides.
// QuotesB is aligned to A's outcome order.
type EnrichedPair struct {
	Pair    MatchedPair    `json:"pair"`
	QuotesA []OutcomeQuote `json:"quotes_a"`
	QuotesB []OutcomeQuote `json:"quotes_b"`
}
