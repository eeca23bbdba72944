package matcher

import (
	"context"
	"sort"
	"strings"

	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/normalize"
)

const (
	defaultThreshold = 75
	exactScore       = 100
)

type Config struct {
	// Threshold is the minimum fuzzy score (0-100) for a FUZZY pair.
	Threshold float64
	Scorer    Scorer
	Logger    *Logger
}

// Matcher aligns Source A records to Source B records in three passes:
// shared canonical id, identical normalized key, then fuzzy similarity.
// Every record ends up in at most one pair.
type Matcher struct {
	threshold float64
	scorer    Scorer
	logger    *Logger
}

func New(cfg Config) *Matcher {
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > 100 {
		threshold = defaultThreshold
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = TokenSetScorer{}
	}
	return &Matcher{threshold: threshold, scorer: scorer, logger: cfg.Logger}
}

// Match runs the default token-set matcher with the given threshold.
func Match(recordsA, recordsB []models.MarketRecord, threshold float64) []models.MatchedPair {
	return New(Config{Threshold: threshold}).Match(recordsA, recordsB)
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

type fuzzyCandidate struct {
	a, b  int
	rank  int
	score float64
}

func (m *Matcher) Match(recordsA, recordsB []models.MarketRecord) []models.MatchedPair {
	return m.MatchContext(context.Background(), recordsA, recordsB)
}

// cycleScorer is implemented by scorers that hold per-cycle state, such as
// memoized vectors or the context their remote calls run under.
type cycleScorer interface {
	BeginCycle(ctx context.Context)
}

// MatchContext is Match bound to ctx. Scorers that make remote calls stop
// once ctx is done and score the remaining pairs 0.
func (m *Matcher) MatchContext(ctx context.Context, recordsA, recordsB []models.MarketRecord) []models.MatchedPair {
	if len(recordsA) == 0 || len(recordsB) == 0 {
		return nil
	}
	if cs, ok := m.scorer.(cycleScorer); ok {
		cs.BeginCycle(ctx)
	}

	keysA := keys(recordsA)
	keysB := keys(recordsB)
	orderA := stableOrder(recordsA, keysA)
	usedA := make([]bool, len(recordsA))
	usedB := make([]bool, len(recordsB))

	var pairs []models.MatchedPair
	accept := func(i, j int, method models.MatchMethod, score float64) {
		usedA[i], usedB[j] = true, true
		pair := models.MatchedPair{A: recordsA[i], B: recordsB[j], Method: method, Score: score}
		pair.A.NormalizedKey = keysA[i]
		pair.B.NormalizedKey = keysB[j]
		pairs = append(pairs, pair)
		m.logger.LogMatch(&pair, m.threshold)
	}

	// Exact id.
	byID := indexBy(recordsB, func(j int) string { return strings.TrimSpace(recordsB[j].CanonicalID) })
	for _, i := range orderA {
		id := strings.TrimSpace(recordsA[i].CanonicalID)
		if id == "" {
			continue
		}
		if j, ok := takeFirst(byID[id], usedB); ok {
			accept(i, j, models.MatchExactID, exactScore)
		}
	}

	// Exact normalized title.
	byKey := indexBy(recordsB, func(j int) string {
		if keysB[j] == normalize.Uncategorized {
			return ""
		}
		return keysB[j]
	})
	for _, i := range orderA {
		if usedA[i] || keysA[i] == normalize.Uncategorized {
			continue
		}
		if j, ok := takeFirst(byKey[keysA[i]], usedB); ok {
			accept(i, j, models.MatchExactTitle, exactScore)
		}
	}

	// Fuzzy: every unmatched (A, B) above threshold is a candidate; accept
	// greedily by score so a loser can still take its next best B.
	var candidates []fuzzyCandidate
	for rank, i := range orderA {
		if usedA[i] {
			continue
		}
		textA := fuzzyText(&recordsA[i], keysA[i])
		for j := range recordsB {
			if usedB[j] {
				continue
			}
			score := clampScore(m.scorer.Score(textA, fuzzyText(&recordsB[j], keysB[j])))
			if score >= m.threshold {
				candidates = append(candidates, fuzzyCandidate{a: i, b: j, rank: rank, score: score})
			}
		}
	}
	sort.SliceStable(candidates, func(x, y int) bool {
		cx, cy := candidates[x], candidates[y]
		if cx.score != cy.score {
			return cx.score > cy.score
		}
		if cx.rank != cy.rank {
			return cx.rank < cy.rank
		}
		return cx.b < cy.b
	})
	for _, c := range candidates {
		if usedA[c.a] || usedB[c.b] {
			continue
		}
		accept(c.a, c.b, models.MatchFuzzy, c.score)
	}

	return pairs
}

// FilterByKeywords keeps records whose title contains any keyword
// (case-insensitive). With no keywords every record is kept.
func FilterByKeywords(records []models.MarketRecord, keywords []string) []models.MarketRecord {
	var kws []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return records
	}
	out := make([]models.MarketRecord, 0, len(records))
	for _, r := range records {
		title := strings.ToLower(r.RawTitle)
		for _, k := range kws {
			if strings.Contains(title, k) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func keys(records []models.MarketRecord) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = records[i].NormalizedKey
		if out[i] == "" {
			out[i] = normalize.Normalize(records[i].RawTitle)
		}
	}
	return out
}

// stableOrder sorts A indices by (key, source id) so output does not depend
// on the order a venue happened to return its listings in.
func stableOrder(records []models.MarketRecord, keys []string) []int {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := order[x], order[y]
		if keys[a] != keys[b] {
			return keys[a] < keys[b]
		}
		return records[a].SourceID < records[b].SourceID
	})
	return order
}

func indexBy(records []models.MarketRecord, keyFn func(int) string) map[string][]int {
	idx := make(map[string][]int)
	for j := range records {
		if k := keyFn(j); k != "" {
			idx[k] = append(idx[k], j)
		}
	}
	return idx
}

func takeFirst(candidates []int, used []bool) (int, bool) {
	for _, j := range candidates {
		if !used[j] {
			return j, true
		}
	}
	return -1, false
}

func fuzzyText(r *models.MarketRecord, key string) string {
	if key == normalize.Uncategorized {
		return strings.ToLower(strings.TrimSpace(r.RawTitle))
	}
	return key
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
