package models

// Strategy names which outcome is bought on each side.
type Strategy string

const (
	// StrategyAYesBNo buys outcome 0 on A and outcome 1 on B.
	StrategyAYesBNo Strategy = "A_YES_B_NO"
	// StrategyANoBYes buys outcome 1 on A and outcome 0 on B.
	StrategyANoBYes Strategy = "A_NO_B_YES"
)

// ArbitrageOpportunity is a derived, cycle-scoped hedge candidate.
type ArbitrageOpportunity struct {
	PairID         string      `json:"pair_id"`
	Pair           MatchedPair `json:"pair"`
	Strategy       Strategy    `json:"strategy"`
	OutcomeA       string      `json:"outcome_a"`
	OutcomeB       string      `json:"outcome_b"`
	PriceA         float64     `json:"price_a"`
	PriceB         float64     `json:"price_b"`
	UnitCost       float64     `json:"unit_cost"`
	ProfitFraction float64     `json:"profit_fraction"`
	DepthAUSD      float64     `json:"depth_a_usd"`
	DepthBUSD      float64     `json:"depth_b_usd"`
	CapacityUSD    float64     `json:"capacity_usd"`
}
