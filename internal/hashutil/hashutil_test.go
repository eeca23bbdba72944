package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnorderedKey(t *testing.T) {
	ab := UnorderedKey("polymarket:a1", "probable:b1")
	assert.Equal(t, ab, UnorderedKey("probable:b1", "polymarket:a1"))
	assert.Len(t, ab, 32)
	assert.NotEqual(t, ab, UnorderedKey("polymarket:a1", "probable:b2"))
}

func TestHashStrings_SeparatesParts(t *testing.T) {
	assert.NotEqual(t, HashStrings("ab", "c"), HashStrings("a", "bc"))
	assert.Equal(t, HashStrings("x"), HashStrings("x"))
}
