package collectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/crossarb/internal/models"
)

// Venues are inconsistent about encoding: arrays may arrive as a JSON string
// holding an array ("[\"Yes\",\"No\"]") and numbers as numeric strings. The
// flex types below accept either form.

// FlexStrings decodes a JSON array of strings or a string containing one.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	raw, err := unwrapStringified(data)
	if err != nil || raw == nil {
		*f = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("flex strings: %w", err)
	}
	*f = out
	return nil
}

// FlexFloat decodes a JSON number, a numeric string, or null (as 0).
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v, err := parseFlexFloat(data)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// FlexFloats decodes an array of numbers or numeric strings, itself possibly
// stringified.
type FlexFloats []float64

func (f *FlexFloats) UnmarshalJSON(data []byte) error {
	raw, err := unwrapStringified(data)
	if err != nil || raw == nil {
		*f = nil
		return err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("flex floats: %w", err)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		v, err := parseFlexFloat(item)
		if err != nil {
			return err
		}
		out[i] = v
	}
	*f = out
	return nil
}

func unwrapStringified(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return []byte(s), nil
}

func parseFlexFloat(data []byte) (float64, error) {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("flex float %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// BookLevel is a CLOB price level as venues serve it.
type BookLevel struct {
	Price FlexFloat `json:"price"`
	Size  FlexFloat `json:"size"`
}

// Book is a CLOB /book response.
type Book struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// AskLadder returns the usable asks sorted ascending by price. Levels with a
// non-positive price or negative size are dropped.
func (b *Book) AskLadder() []models.OrderBookLevel {
	out := make([]models.OrderBookLevel, 0, len(b.Asks))
	for _, lvl := range b.Asks {
		if lvl.Price <= 0 || lvl.Size < 0 {
			continue
		}
		out = append(out, models.OrderBookLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
