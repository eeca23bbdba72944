package matcher

import (
	"sort"
	"strings"
)

// Scorer rates how similar two titles are on a 0-100 scale.
type Scorer interface {
	Score(a, b string) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(a, b string) float64

func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }

// TokenSetScorer is the default fuzzy scorer: an order-independent token
// overlap ratio.
type TokenSetScorer struct{}

func (TokenSetScorer) Score(a, b string) float64 {
	return TokenSetRatio(a, b)
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// leftover tokens and returns the best indel similarity among the three
// combinations. Word order and duplicate words do not affect the score.
// A full subset relationship (one side adds nothing) scores 100.
func TokenSetRatio(a, b string) float64 {
	ta := uniqueSorted(strings.Fields(strings.ToLower(a)))
	tb := uniqueSorted(strings.Fields(strings.ToLower(b)))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter, onlyA, onlyB := splitTokens(ta, tb)
	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := strings.Join(inter, " ")
	withA := joinNonEmpty(sect, strings.Join(onlyA, " "))
	withB := joinNonEmpty(sect, strings.Join(onlyB, " "))

	best := indelRatio(withA, withB)
	if sect != "" {
		best = max(best, indelRatio(sect, withA), indelRatio(sect, withB))
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// splitTokens walks two sorted, de-duplicated token lists.
func splitTokens(a, b []string) (inter, onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter = append(inter, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return inter, onlyA, onlyB
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// indelRatio is 100 * 2*LCS / (len(a)+len(b)), computed over runes.
func indelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(ra, rb)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
