package normalize

import (
	"regexp"
	"strings"
)

// Uncategorized is returned when nothing survives normalization, so an empty
// title never collides with a real key.
const Uncategorized = "uncategorized"

const monthAlternation = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

// Date-ish words a connector must be followed by before its clause is dropped.
const dateTargets = monthAlternation + `|q[1-4]|year|month|week|quarter|today|tomorrow|tonight|eoy|eom`

var (
	trailingPunct = "?!.,;: \t"
	// $2b, 80,000, 100k, 2.5%, 31st, 2026
	amountRe       = regexp.MustCompile(`\$?\b\d[\d,]*(?:\.\d+)?(?:st|nd|rd|th)?(?:\s?(?:k|m|bn|b|t|thousand|million|billion|trillion)\b)?%?`)
	leadingWillRe  = regexp.MustCompile(`^will\s+`)
	monthRe        = regexp.MustCompile(`\b(?:` + monthAlternation + `)\b\.?`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	edgeCharacters = " ,;:-–/&"
)

// Rules configures the template phrases stripped from titles. Different
// venues phrase the same event with different boilerplate; the rules are the
// single place those variations live.
type Rules struct {
	// Connectors introduce deadline clauses ("by", "before", "end of").
	Connectors []string
	// EventNames are recurring event labels removed wherever they appear.
	EventNames []string
}

// DefaultRules returns the connector and event-name lists used by Normalize.
func DefaultRules() Rules {
	return Rules{
		Connectors: []string{"by", "before", "after", "until", "in", "on", "end of"},
		EventNames: []string{"fomc meeting", "fed meeting"},
	}
}

// Normalizer turns free-text titles into comparison keys.
type Normalizer struct {
	deadlineRe *regexp.Regexp
	danglingRe *regexp.Regexp
	eventRe    *regexp.Regexp
}

// New compiles a Normalizer for the given rules.
func New(rules Rules) *Normalizer {
	n := &Normalizer{}
	if conns := phraseAlternation(rules.Connectors); conns != "" {
		// connector + optional "the"/"end of" + a date word, then the rest of the clause.
		n.deadlineRe = regexp.MustCompile(`\b(?:` + conns + `)\s+(?:the\s+)?(?:end\s+of\s+)?(?:the\s+)?(?:` + dateTargets + `)\b[^,;:()]*`)
		n.danglingRe = regexp.MustCompile(`\b(?:` + conns + `)\s*$`)
	}
	if events := phraseAlternation(rules.EventNames); events != "" {
		n.eventRe = regexp.MustCompile(`\b(?:` + events + `)\b`)
	}
	return n
}

var defaultNormalizer = New(DefaultRules())

// Normalize canonicalizes raw with the default rules.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Normalize is pure: the same input always yields the same key. It is not
// idempotent, since each pass may strip further tokens.
func (n *Normalizer) Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, trailingPunct)

	s = amountRe.ReplaceAllString(s, " ")

	s = leadingWillRe.ReplaceAllString(s, "")
	if n.deadlineRe != nil {
		s = n.deadlineRe.ReplaceAllString(s, " ")
	}
	s = monthRe.ReplaceAllString(s, " ")
	if n.eventRe != nil {
		s = n.eventRe.ReplaceAllString(s, " ")
	}

	s = collapse(s)
	if n.danglingRe != nil {
		s = collapse(n.danglingRe.ReplaceAllString(s, ""))
	}
	if s == "" {
		return Uncategorized
	}
	return s
}

// Tokens splits a key into whitespace-separated words.
func Tokens(key string) []string {
	return strings.Fields(key)
}

func collapse(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, edgeCharacters)
	return strings.TrimRight(s, trailingPunct)
}

func phraseAlternation(phrases []string) string {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		words := strings.Fields(p)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return strings.Join(parts, "|")
}
