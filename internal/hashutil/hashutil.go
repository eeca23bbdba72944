package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// HashStrings returns a SHA256 hash of the provided strings with newline separators.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UnorderedKey hashes the parts after sorting them, so (a, b) and (b, a)
// produce the same key. The result is truncated to 16 bytes of hex.
func UnorderedKey(parts ...string) string {
	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)
	return HashStrings(sorted...)[:32]
}
