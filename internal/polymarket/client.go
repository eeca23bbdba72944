package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

const (
	defaultMarketsURL = "https://gamma-api.polymarket.com/markets"
	defaultBookURL    = "https://clob.polymarket.com/book"
	defaultPageSize   = 500
	maxPageSize       = 1000
)

// Client lists Polymarket markets from the Gamma API and reads CLOB books.
type Client struct {
	marketsURL string
	bookURL    string
	opts       collectors.FetchOptions
	req        *collectors.Requester
}

// Config controls optional overrides for the client.
type Config struct {
	MarketsURL string
	BookURL    string
	Timeout    time.Duration
	Fetch      collectors.FetchOptions
	Throttle   *collectors.Throttle
}

// NewClient builds a Polymarket client with sane defaults.
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
			Name:     string(models.VenuePolymarket),
			Timeout:  cfg.Timeout,
			Throttle: cfg.Throttle,
		}),
	}
}

func (c *Client) Venue() models.Venue {
	return models.VenuePolymarket
}

// FetchRecords walks every active, open market with offset paging.
func (c *Client) FetchRecords(ctx context.Context) ([]models.MarketRecord, error) {
	limit := c.opts.PageSize
	raw, err := collectors.FetchPages(ctx, "polymarket", c.opts, func(ctx context.Context, page int) (collectors.Page[market], error) {
		q := url.Values{}
		q.Set("active", "true")
		q.Set("closed", "false")
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(page*limit))

		var list []market
		if err := c.req.GetJSON(ctx, c.marketsURL, q, &list); err != nil {
			return collectors.Page[market]{}, err
		}
		return collectors.Page[market]{Items: list, Last: len(list) < limit}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket list markets: %w", err)
	}

	records := make([]models.MarketRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i := range raw {
		m := &raw[i]
		if _, dup := seen[m.ID]; dup || isPlaceholderMarket(m) {
			continue
		}
		seen[m.ID] = struct{}{}
		records = append(records, m.toRecord())
	}
	kept := collectors.KeepValid("polymarket", records)
	logging.Debugf("[polymarket] %d raw markets, %d records kept", len(raw), len(kept))
	return kept, nil
}

// FetchBook returns the token's asks, lowest first. The CLOB serves asks
// best-last, so the ladder is always re-sorted.
func (c *Client) FetchBook(ctx context.Context, tokenID string) ([]models.OrderBookLevel, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	var book collectors.Book
	if err := c.req.GetJSON(ctx, c.bookURL, q, &book); err != nil {
		return nil, fmt.Errorf("polymarket book %s: %w", tokenID, err)
	}
	return book.AskLadder(), nil
}

func (m *market) toRecord() models.MarketRecord {
	liquidity := float64(m.LiquidityNum)
	if liquidity == 0 {
		liquidity = float64(m.Liquidity)
	}
	rec := models.MarketRecord{
		Venue:           models.VenuePolymarket,
		SourceID:        m.ID,
		CanonicalID:     strings.ToLower(strings.TrimSpace(m.ConditionID)),
		RawTitle:        strings.TrimSpace(m.Question),
		OutcomeNames:    m.Outcomes,
		OutcomePrices:   m.OutcomePrices,
		OutcomeTokenIDs: m.ClobTokenIDs,
		LiquidityUSD:    liquidity,
		Volume24hUSD:    float64(m.Volume24h),
		Active:          m.Active,
		Closed:          m.Closed,
	}
	if m.EndDate != "" {
		if ts, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			rec.EndTime = &ts
		}
	}
	return rec
}

var placeholderQuestionRe = regexp.MustCompile(`(?i)^will\s+\w+\s+[a-z]\b`)

// isPlaceholderMarket catches the "Will Person X win" stubs Polymarket lists
// before a candidate slot is filled.
func isPlaceholderMarket(m *market) bool {
	q := strings.TrimSpace(m.Question)
	if q == "" || placeholderQuestionRe.MatchString(q) {
		return true
	}
	desc := strings.ToLower(m.Description)
	return strings.Contains(desc, "may be updated to replace") || strings.Contains(desc, "placeholder")
}

type market struct {
	ID            string                 `json:"id"`
	Question      string                 `json:"question"`
	Description   string                 `json:"description"`
	ConditionID   string                 `json:"conditionId"`
	Outcomes      collectors.FlexStrings `json:"outcomes"`
	OutcomePrices collectors.FlexFloats  `json:"outcomePrices"`
	ClobTokenIDs  collectors.FlexStrings `json:"clobTokenIds"`
	Liquidity     collectors.FlexFloat   `json:"liquidity"`
	LiquidityNum  collectors.FlexFloat   `json:"liquidityNum"`
	Volume24h     collectors.FlexFloat   `json:"volume24hr"`
	EndDate       string                 `json:"endDate"`
	Active        bool                   `json:"active"`
	Closed        bool                   `json:"closed"`
}
