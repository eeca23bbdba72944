package probable

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

const (
	defaultMarketsURL = "https://market-api.probable.markets/public/api/v1/markets/"
	defaultBookURL    = "https://market-api.probable.markets/public/api/v1/book"
	defaultPageSize   = 100
	// the listing endpoint rejects larger pages
	maxPageSize = 100
)

// Client talks to the Probable public market API.
type Client struct {
	marketsURL string
	bookURL    string
	opts       collectors.FetchOptions
	req        *collectors.Requester
}

// Config provides optional overrides.
type Config struct {
	MarketsURL string
	BookURL    string
	Timeout    time.Duration
	Fetch      collectors.FetchOptions
	Throttle   *collectors.Throttle
}

func NewClient(cfg Config) *Client {
	markets := cfg.MarketsURL
	if markets == "" {
		markets = defaultMarketsURL
	}
	book := cfg.BookURL
	if book == "" {
		book = defaultBookURL
	}
	return &Client{
		marketsURL: markets,
		bookURL:    book,
		opts:       cfg.Fetch.WithDefaults(defaultPageSize, maxPageSize),
		req: collectors.NewRequester(collectors.RequesterConfig{
			Name:     string(models.VenueProbable),
			Timeout:  cfg.Timeout,
			Throttle: cfg.Throttle,
		}),
	}
}

func (c *Client) Venue() models.Venue {
	return models.VenueProbable
}

// FetchRecords walks the active listing. Pages are 1-based and the envelope's
// pagination.hasMore marks the last page.
func (c *Client) FetchRecords(ctx context.Context) ([]models.MarketRecord, error) {
	limit := c.opts.PageSize
	raw, err := collectors.FetchPages(ctx, "probable", c.opts, func(ctx context.Context, page int) (collectors.Page[market], error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page+1))
		q.Set("limit", strconv.Itoa(limit))
		q.Set("active", "true")

		var env envelope
		if err := c.req.GetJSON(ctx, c.marketsURL, q, &env); err != nil {
			return collectors.Page[market]{}, err
		}
		return collectors.Page[market]{Items: env.Markets, Last: !env.Pagination.HasMore}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("probable list markets: %w", err)
	}

	records := make([]models.MarketRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i := range raw {
		m := &raw[i]
		id := m.sourceID()
		if id == "" || strings.TrimSpace(m.Question) == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, m.toRecord())
	}
	kept := collectors.KeepValid("probable", records)
	logging.Debugf("[probable] %d raw markets, %d records kept", len(raw), len(kept))
	return kept, nil
}

// FetchBook returns the token's asks, lowest first.
func (c *Client) FetchBook(ctx context.Context, tokenID string) ([]models.OrderBookLevel, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	var book collectors.Book
	if err := c.req.GetJSON(ctx, c.bookURL, q, &book); err != nil {
		return nil, fmt.Errorf("probable book %s: %w", tokenID, err)
	}
	return book.AskLadder(), nil
}

type envelope struct {
	Markets    []market `json:"markets"`
	Pagination struct {
		HasMore bool `json:"hasMore"`
	} `json:"pagination"`
}

type token struct {
	TokenID string               `json:"token_id"`
	Outcome string               `json:"outcome"`
	Price   collectors.FlexFloat `json:"price"`
}

type market struct {
	ID            flexID                 `json:"id"`
	MarketSlug    string                 `json:"market_slug"`
	Question      string                 `json:"question"`
	ConditionID   string                 `json:"conditionId"`
	ConditionIDv2 string                 `json:"condition_id"`
	Outcomes      collectors.FlexStrings `json:"outcomes"`
	OutcomePrices collectors.FlexFloats  `json:"outcomePrices"`
	ClobTokenIDs  collectors.FlexStrings `json:"clobTokenIds"`
	Tokens        []token                `json:"tokens"`
	Liquidity     collectors.FlexFloat   `json:"liquidity"`
	Volume24h     collectors.FlexFloat   `json:"volume24hr"`
	EndDate       string                 `json:"endDate"`
	Active        bool                   `json:"active"`
	Closed        bool                   `json:"closed"`
}

func (m *market) sourceID() string {
	if id := strings.TrimSpace(string(m.ID)); id != "" {
		return id
	}
	return strings.TrimSpace(m.MarketSlug)
}

func (m *market) toRecord() models.MarketRecord {
	cond := m.ConditionID
	if cond == "" {
		cond = m.ConditionIDv2
	}
	rec := models.MarketRecord{
		Venue:        models.VenueProbable,
		SourceID:     m.sourceID(),
		CanonicalID:  strings.ToLower(strings.TrimSpace(cond)),
		RawTitle:     strings.TrimSpace(m.Question),
		LiquidityUSD: float64(m.Liquidity),
		Volume24hUSD: float64(m.Volume24h),
		Active:       m.Active,
		Closed:       m.Closed,
	}

	// Some listings carry a tokens array instead of the flat outcome arrays.
	if len(m.Tokens) > 0 && len(m.Outcomes) == 0 {
		for _, t := range m.Tokens {
			rec.OutcomeNames = append(rec.OutcomeNames, t.Outcome)
			rec.OutcomePrices = append(rec.OutcomePrices, float64(t.Price))
			rec.OutcomeTokenIDs = append(rec.OutcomeTokenIDs, t.TokenID)
		}
	} else {
		rec.OutcomeNames = m.Outcomes
		rec.OutcomePrices = m.OutcomePrices
		rec.OutcomeTokenIDs = m.ClobTokenIDs
	}

	if m.EndDate != "" {
		if ts, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			rec.EndTime = &ts
		}
	}
	return rec
}

// flexID accepts numeric or string ids.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}
