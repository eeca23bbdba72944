package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/models"
)

func gammaMarket(id, question string) map[string]any {
	return map[string]any{
		"id":            id,
		"question":      question,
		"conditionId":   "0xCOND" + id,
		"outcomes":      `["Yes", "No"]`,
		"outcomePrices": `["0.6", "0.4"]`,
		"clobTokenIds":  `["` + id + `-yes", "` + id + `-no"]`,
		"liquidity":     "1500.5",
		"volume24hr":    320.25,
		"endDate":       "2026-12-31T00:00:00Z",
		"active":        true,
		"closed":        false,
	}
}

func newServer(t *testing.T, markets []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("active"))
		assert.Equal(t, "false", q.Get("closed"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		end := min(offset+limit, len(markets))
		page := []map[string]any{}
		if offset < len(markets) {
			page = markets[offset:end]
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "missing" {
			http.Error(w, `{"error":"No orderbook exists"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"bids":[{"price":"0.40","size":"10"}],"asks":[
			{"price":"0.99","size":"1000"},
			{"price":"0.62","size":"50"},
			{"price":"0.61","size":"20"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		MarketsURL: srv.URL + "/markets",
		BookURL:    srv.URL + "/book",
		Timeout:    2 * time.Second,
		Fetch:      collectors.FetchOptions{PageSize: 2, Workers: 2},
	})
}

func TestFetchRecords_PagesAndConverts(t *testing.T) {
	placeholder := gammaMarket("4", "Will Person B win the election?")
	noPrices := gammaMarket("5", "Broken listing")
	noPrices["outcomePrices"] = `["0.6"]`
	srv := newServer(t, []map[string]any{
		gammaMarket("1", "BTC above 100k?"),
		gammaMarket("2", "Fed cuts rates in March"),
		gammaMarket("3", "ETH above 5k?"),
		placeholder,
		noPrices,
	})

	records, err := newTestClient(srv).FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[0]
	assert.Equal(t, models.VenuePolymarket, r.Venue)
	assert.Equal(t, "1", r.SourceID)
	assert.Equal(t, "0xcond1", r.CanonicalID)
	assert.Equal(t, "BTC above 100k?", r.RawTitle)
	assert.Equal(t, []string{"Yes", "No"}, r.OutcomeNames)
	assert.Equal(t, []float64{0.6, 0.4}, r.OutcomePrices)
	assert.Equal(t, []string{"1-yes", "1-no"}, r.OutcomeTokenIDs)
	assert.InDelta(t, 1500.5, r.LiquidityUSD, 1e-9)
	assert.InDelta(t, 320.25, r.Volume24hUSD, 1e-9)
	require.NotNil(t, r.EndTime)
	assert.Equal(t, 2026, r.EndTime.Year())

	assert.Equal(t, "2", records[1].SourceID)
	assert.Equal(t, "3", records[2].SourceID)
}

func TestFetchRecords_SourceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{MarketsURL: srv.URL, Fetch: collectors.FetchOptions{Workers: 1}})
	records, err := c.FetchRecords(context.Background())
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestFetchBook_SortsAsksAscending(t *testing.T) {
	srv := newServer(t, nil)
	asks, err := newTestClient(srv).FetchBook(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []models.OrderBookLevel{
		{Price: 0.61, Size: 20},
		{Price: 0.62, Size: 50},
		{Price: 0.99, Size: 1000},
	}, asks)
}

func TestFetchBook_MissingBook(t *testing.T) {
	srv := newServer(t, nil)
	_, err := newTestClient(srv).FetchBook(context.Background(), "missing")
	assert.Error(t, err)
}
