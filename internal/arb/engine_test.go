package arb

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/models"
)

func quote(outcome string, asks ...models.OrderBookLevel) models.OutcomeQuote {
	q := models.OutcomeQuote{Outcome: outcome, TokenID: outcome + "-tok", Asks: asks}
	for _, lvl := range asks {
		if lvl.Size > 0 && (!q.Tradable || lvl.Price < q.BestAsk) {
			q.BestAsk, q.Tradable = lvl.Price, true
		}
	}
	return q
}

func enriched(qa, qb []models.OutcomeQuote) models.EnrichedPair {
	return models.EnrichedPair{
		Pair: models.MatchedPair{
			A:      models.MarketRecord{Venue: models.VenuePolymarket, SourceID: "a1", RawTitle: "btc above 100k"},
			B:      models.MarketRecord{Venue: models.VenueProbable, SourceID: "b1", RawTitle: "BTC above 100k"},
			Method: models.MatchExactTitle,
			Score:  100,
		},
		QuotesA: qa,
		QuotesB: qb,
	}
}

func lvl(price, size float64) models.OrderBookLevel {
	return models.OrderBookLevel{Price: price, Size: size}
}

func TestEvaluate_ProfitableHedge(t *testing.T) {
	ep := enriched(
		[]models.OutcomeQuote{quote("Yes", lvl(0.60, 100), lvl(0.70, 1000)), quote("No", lvl(0.45, 100))},
		[]models.OutcomeQuote{quote("Yes", lvl(0.66, 100)), quote("No", lvl(0.35, 200), lvl(0.357, 100))},
	)

	ops := Evaluate([]models.EnrichedPair{ep}, DefaultConfig())
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, models.StrategyAYesBNo, op.Strategy)
	assert.Equal(t, "Yes", op.OutcomeA)
	assert.Equal(t, "No", op.OutcomeB)
	assert.InDelta(t, 0.95, op.UnitCost, 1e-12)
	assert.InDelta(t, 0.0526315, op.ProfitFraction, 1e-6)
	// A band: 0.60*1.02 = 0.612 keeps only the first level.
	assert.InDelta(t, 60, op.DepthAUSD, 1e-9)
	// B band: 0.35*1.02 = 0.357 keeps both levels.
	assert.InDelta(t, 70+35.7, op.DepthBUSD, 1e-9)
	assert.InDelta(t, 60, op.CapacityUSD, 1e-9)
	assert.Equal(t, ep.Pair.ID(), op.PairID)
}

func TestEvaluate_EmptyBookIsFiltered(t *testing.T) {
	// The listing says 0.01 but the book is empty: quote untradable.
	ghost := models.OutcomeQuote{Outcome: "No", TokenID: "ghost"}
	ep := enriched(
		[]models.OutcomeQuote{quote("Yes", lvl(0.60, 100)), quote("No", lvl(0.45, 100))},
		[]models.OutcomeQuote{quote("Yes", lvl(0.66, 100)), ghost},
	)
	assert.Empty(t, Evaluate([]models.EnrichedPair{ep}, DefaultConfig()))
}

func TestEvaluate_ZeroDepthFailsLiquidityFloor(t *testing.T) {
	// Tradable by price but the ladder carries no sized levels in the band.
	hollow := models.OutcomeQuote{Outcome: "No", TokenID: "t", BestAsk: 0.35, Tradable: true}
	ep := enriched(
		[]models.OutcomeQuote{quote("Yes", lvl(0.60, 100)), quote("No", lvl(0.45, 100))},
		[]models.OutcomeQuote{quote("Yes", lvl(0.66, 100)), hollow},
	)
	assert.Empty(t, Evaluate([]models.EnrichedPair{ep}, DefaultConfig()))

	cfg := DefaultConfig()
	cfg.VerifyDepth = false
	ops := Evaluate([]models.EnrichedPair{ep}, cfg)
	require.Len(t, ops, 1)
	assert.Equal(t, 0.0, ops[0].CapacityUSD)
}

func TestEvaluate_Gates(t *testing.T) {
	base := func(priceA, priceB float64) models.EnrichedPair {
		return enriched(
			[]models.OutcomeQuote{quote("Yes", lvl(priceA, 1000)), quote("No", lvl(0.99, 1000))},
			[]models.OutcomeQuote{quote("Yes", lvl(0.99, 1000)), quote("No", lvl(priceB, 1000))},
		)
	}

	tests := []struct {
		name   string
		priceA float64
		priceB float64
		cfg    func(*Config)
		want   int
	}{
		{name: "profitable", priceA: 0.50, priceB: 0.40, want: 1},
		{name: "at profit ceiling", priceA: 0.50, priceB: 0.49, want: 0},
		{name: "just under ceiling", priceA: 0.50, priceB: 0.48, want: 1},
		{name: "dust price", priceA: 0.01, priceB: 0.40, want: 0},
		{name: "liquidity floor", priceA: 0.50, priceB: 0.40, cfg: func(c *Config) { c.MinLiquidityUSD = 400 }, want: 0},
		{name: "liquidity floor cleared", priceA: 0.50, priceB: 0.40, cfg: func(c *Config) { c.MinLiquidityUSD = 399 }, want: 1},
		{name: "no arb", priceA: 0.55, priceB: 0.50, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			ops := Evaluate([]models.EnrichedPair{base(tt.priceA, tt.priceB)}, cfg)
			assert.Len(t, ops, tt.want)
		})
	}
}

func TestEvaluate_BothStrategiesAndOrdering(t *testing.T) {
	better := enriched(
		[]models.OutcomeQuote{quote("Yes", lvl(0.40, 100)), quote("No", lvl(0.30, 100))},
		[]models.OutcomeQuote{quote("Yes", lvl(0.50, 100)), quote("No", lvl(0.45, 100))},
	)
	better.Pair.A.SourceID = "a2"
	worse := enriched(
		[]models.OutcomeQuote{quote("Yes", lvl(0.50, 100)), quote("No", lvl(0.60, 100))},
		[]models.OutcomeQuote{quote("Yes", lvl(0.50, 100)), quote("No", lvl(0.45, 100))},
	)

	ops := Evaluate([]models.EnrichedPair{worse, better}, DefaultConfig())
	require.Len(t, ops, 3)
	for i := 1; i < len(ops); i++ {
		assert.GreaterOrEqual(t, ops[i-1].ProfitFraction, ops[i].ProfitFraction)
	}
	assert.Equal(t, models.StrategyANoBYes, ops[0].Strategy)
	assert.InDelta(t, 0.80, ops[0].UnitCost, 1e-12)
}

func TestEvaluate_SkipsMultiOutcome(t *testing.T) {
	three := []models.OutcomeQuote{quote("A", lvl(0.1, 10)), quote("B", lvl(0.1, 10)), quote("C", lvl(0.1, 10))}
	assert.Empty(t, Evaluate([]models.EnrichedPair{enriched(three, three)}, DefaultConfig()))
}

func TestCapacity_Symmetric(t *testing.T) {
	f := func(a, b float64) bool {
		return Capacity(a, b) == Capacity(b, a)
	}
	require.NoError(t, quick.Check(f, nil))
	assert.Equal(t, 0.0, Capacity(-5, 10))
}

func TestProfitFraction_DecreasesWithCost(t *testing.T) {
	f := func(x, y uint16) bool {
		// unit costs in (0, 1]
		a := (float64(x%10000) + 1) / 10000
		b := (float64(y%10000) + 1) / 10000
		if a == b {
			return ProfitFraction(a) == ProfitFraction(b)
		}
		if a > b {
			a, b = b, a
		}
		return ProfitFraction(a) > ProfitFraction(b)
	}
	require.NoError(t, quick.Check(f, nil))
	assert.InDelta(t, 0.0526315789, ProfitFraction(0.95), 1e-9)
	assert.Equal(t, 0.0, ProfitFraction(0))
}

func TestBandDepth(t *testing.T) {
	asks := []models.OrderBookLevel{lvl(0.50, 10), lvl(0.51, 10), lvl(0.52, 10), lvl(0.40, 0)}
	assert.InDelta(t, 5+5.1, BandDepth(asks, 0.50, 0.02), 1e-9)
	assert.InDelta(t, 5, BandDepth(asks, 0.50, 0), 1e-9)
	assert.Equal(t, 0.0, BandDepth(nil, 0.50, 0.02))
}
