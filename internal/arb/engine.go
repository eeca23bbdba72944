package arb

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/crossarb/internal/models"
)

// Config holds the profitability and liquidity gates.
type Config struct {
	// MinProfitFraction is the margin a hedge must clear: emit only when
	// unit cost < 1 - MinProfitFraction.
	MinProfitFraction float64
	// MinValidPrice rejects dust quotes at or below this price.
	MinValidPrice float64
	// MinLiquidityUSD is the floor each side's band depth must exceed.
	MinLiquidityUSD float64
	// SlippageTolerance widens the depth band to best*(1+tolerance).
	SlippageTolerance float64
	VerifyDepth       bool
}

func DefaultConfig() Config {
	return Config{
		MinProfitFraction: 0.01,
		MinValidPrice:     0.01,
		MinLiquidityUSD:   0,
		SlippageTolerance: 0.02,
		VerifyDepth:       true,
	}
}

type leg struct {
	strategy models.Strategy
	idxA     int
	idxB     int
}

// Buying outcome 0 on one venue and outcome 1 on the other pays out exactly
// 1 whichever way a two-outcome event resolves.
var legs = []leg{
	{strategy: models.StrategyAYesBNo, idxA: 0, idxB: 1},
	{strategy: models.StrategyANoBYes, idxA: 1, idxB: 0},
}

// Evaluate returns every opportunity across the enriched pairs, most
// profitable first.
func Evaluate(enriched []models.EnrichedPair, cfg Config) []models.ArbitrageOpportunity {
	var out []models.ArbitrageOpportunity
	for i := range enriched {
		out = append(out, EvaluatePair(&enriched[i], cfg)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProfitFraction > out[j].ProfitFraction
	})
	return out
}

// EvaluatePair checks both hedge strategies for one pair. Events with other
// than two outcomes are skipped.
func EvaluatePair(ep *models.EnrichedPair, cfg Config) []models.ArbitrageOpportunity {
	if len(ep.QuotesA) != 2 || len(ep.QuotesB) != 2 {
		return nil
	}
	pairID := ep.Pair.ID()

	var out []models.ArbitrageOpportunity
	for _, l := range legs {
		qa, qb := ep.QuotesA[l.idxA], ep.QuotesB[l.idxB]
		if !qa.Tradable || !qb.Tradable {
			continue
		}
		if qa.BestAsk <= cfg.MinValidPrice || qb.BestAsk <= cfg.MinValidPrice {
			continue
		}
		unitCost := decimal.NewFromFloat(qa.BestAsk).Add(decimal.NewFromFloat(qb.BestAsk))
		ceiling := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(cfg.MinProfitFraction))
		if !unitCost.LessThan(ceiling) {
			continue
		}

		depthA := BandDepth(qa.Asks, qa.BestAsk, cfg.SlippageTolerance)
		depthB := BandDepth(qb.Asks, qb.BestAsk, cfg.SlippageTolerance)
		if cfg.VerifyDepth && (depthA <= cfg.MinLiquidityUSD || depthB <= cfg.MinLiquidityUSD) {
			continue
		}

		cost := unitCost.InexactFloat64()
		out = append(out, models.ArbitrageOpportunity{
			PairID:         pairID,
			Pair:           ep.Pair,
			Strategy:       l.strategy,
			OutcomeA:       qa.Outcome,
			OutcomeB:       qb.Outcome,
			PriceA:         qa.BestAsk,
			PriceB:         qb.BestAsk,
			UnitCost:       cost,
			ProfitFraction: ProfitFraction(cost),
			DepthAUSD:      depthA,
			DepthBUSD:      depthB,
			CapacityUSD:    Capacity(depthA, depthB),
		})
	}
	return out
}

// ProfitFraction is the return on capital of a hedge bought at unitCost.
func ProfitFraction(unitCost float64) float64 {
	if unitCost <= 0 {
		return 0
	}
	return (1 - unitCost) / unitCost
}

// Capacity is the notional both sides can absorb, bounded by the thinner one.
func Capacity(depthA, depthB float64) float64 {
	return max(0, min(depthA, depthB))
}

// BandDepth sums price*size over asks priced within best*(1+tolerance).
// An empty ladder has zero depth.
func BandDepth(asks []models.OrderBookLevel, best, tolerance float64) float64 {
	if len(asks) == 0 || best <= 0 {
		return 0
	}
	if tolerance < 0 {
		tolerance = 0
	}
	limit := decimal.NewFromFloat(best).Mul(decimal.NewFromFloat(1 + tolerance))
	total := decimal.Zero
	for _, lvl := range asks {
		if lvl.Size <= 0 || lvl.Price <= 0 {
			continue
		}
		price := decimal.NewFromFloat(lvl.Price)
		if price.GreaterThan(limit) {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromFloat(lvl.Size)))
	}
	return total.InexactFloat64()
}
