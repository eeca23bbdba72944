package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"amount suffix", "BTC above 100k", "btc above"},
		{"case and trailing punctuation", "btc above 100k?!", "btc above"},
		{"leading will and deadline clause", "Will the Fed cut rates in March 2026?", "the fed cut rates"},
		{"deadline without will", "Fed cuts rates in March", "fed cuts rates"},
		{"currency and day ordinal", "Bitcoin above $100,000 by December 31, 2025?", "bitcoin above"},
		{"quarter deadline and percent", "GDP growth above 2.5% in Q1 2026?", "gdp growth above"},
		{"event name", "Will the FOMC meeting cut rates?", "the cut rates"},
		{"dangling connector", "Trump out as president by?", "trump out as president"},
		{"connector without date word stays", "Will the Fed decrease rates by 25 bps after the March meeting?", "the fed decrease rates by bps"},
		{"whitespace collapse", "  ETH   flips\tBTC  ", "eth flips btc"},
		{"empty", "", Uncategorized},
		{"only punctuation", "???", Uncategorized},
		{"only an amount", "$2B", Uncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raws := []string{"Will the Fed cut rates in March 2026?", "BTC above 100k", "", "Lakers win the title"}
	for _, raw := range raws {
		first := Normalize(raw)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Normalize(raw))
		}
	}
}

func TestNormalize_VenuePhrasingsCollide(t *testing.T) {
	assert.Equal(t, Normalize("btc above 100k"), Normalize("BTC above 100k"))
	assert.Equal(t, Normalize("Bitcoin above $100,000 by December 31, 2025?"), Normalize("bitcoin above 100k before dec 2025"))
}

func TestNew_CustomRules(t *testing.T) {
	n := New(Rules{EventNames: []string{"Super Bowl"}})
	assert.Equal(t, "chiefs win lix", n.Normalize("Chiefs win Super Bowl LIX"))

	// without connectors the preposition survives; month names still go
	bare := New(Rules{})
	assert.Equal(t, "fed cut in", bare.Normalize("fed cut in march"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"fed", "cut", "rates"}, Tokens(" fed  cut rates "))
	assert.Empty(t, Tokens(""))
}
