package liquidity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

const (
	defaultWorkers     = 8
	defaultBookTimeout = 10 * time.Second
)

// ErrNoBookSource is returned for a venue without a configured book adapter.
var ErrNoBookSource = errors.New("no book source for venue")

type Config struct {
	// Books maps each venue to the adapter serving its order books.
	Books       map[models.Venue]collectors.BookFetcher
	Cache       cache.BookCache
	Workers     int
	BookTimeout time.Duration
}

// Resolver replaces listing prices with live best asks. A quote is only
// tradable when its token id is known, its book was fetched, and the book has
// at least one ask with size.
type Resolver struct {
	books       map[models.Venue]collectors.BookFetcher
	cache       cache.BookCache
	workers     int
	bookTimeout time.Duration
}

func NewResolver(cfg Config) *Resolver {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.BookTimeout
	if timeout <= 0 {
		timeout = defaultBookTimeout
	}
	return &Resolver{
		books:       cfg.Books,
		cache:       cfg.Cache,
		workers:     workers,
		bookTimeout: timeout,
	}
}

// ResolveAll enriches every pair, fanning out across pairs. Output order
// matches input order.
func (r *Resolver) ResolveAll(ctx context.Context, pairs []models.MatchedPair) []models.EnrichedPair {
	out := make([]models.EnrichedPair, len(pairs))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range pairs {
		g.Go(func() error {
			out[i] = r.Resolve(ctx, pairs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Resolve quotes every outcome of both records. B's quotes are reordered to
// follow A's outcome order.
func (r *Resolver) Resolve(ctx context.Context, pair models.MatchedPair) models.EnrichedPair {
	ep := models.EnrichedPair{Pair: pair}
	ep.QuotesA = make([]models.OutcomeQuote, len(pair.A.OutcomeNames))
	for i := range pair.A.OutcomeNames {
		ep.QuotesA[i] = r.quote(ctx, &pair.A, i)
	}

	alignment := AlignOutcomes(pair.A.OutcomeNames, pair.B.OutcomeNames)
	ep.QuotesB = make([]models.OutcomeQuote, len(alignment))
	for i, j := range alignment {
		if j < 0 {
			ep.QuotesB[i] = models.OutcomeQuote{Outcome: pair.A.OutcomeNames[i]}
			continue
		}
		ep.QuotesB[i] = r.quote(ctx, &pair.B, j)
	}
	return ep
}

func (r *Resolver) quote(ctx context.Context, rec *models.MarketRecord, idx int) models.OutcomeQuote {
	q := models.OutcomeQuote{Outcome: rec.OutcomeNames[idx], TokenID: rec.TokenID(idx)}
	if q.TokenID == "" {
		return q
	}
	asks, err := r.book(ctx, rec.Venue, q.TokenID)
	if err != nil {
		logging.Warnf("[liquidity] %s book %s (%s): %v", rec.Venue, q.TokenID, rec.SourceID, err)
		return q
	}
	q.Asks = asks
	q.BestAsk, q.Tradable = BestAsk(asks)
	return q
}

func (r *Resolver) book(ctx context.Context, venue models.Venue, tokenID string) ([]models.OrderBookLevel, error) {
	if r.cache != nil {
		asks, hit, err := r.cache.Get(ctx, venue, tokenID)
		if err != nil {
			logging.Warnf("[liquidity] book cache get %s:%s: %v", venue, tokenID, err)
		} else if hit {
			return asks, nil
		}
	}

	fetcher, ok := r.books[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBookSource, venue)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.bookTimeout)
	defer cancel()
	asks, err := fetcher.FetchBook(fetchCtx, tokenID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, venue, tokenID, asks); err != nil {
			logging.Warnf("[liquidity] book cache set %s:%s: %v", venue, tokenID, err)
		}
	}
	return asks, nil
}

// BestAsk returns the lowest ask with positive size. ok is false for an
// empty or fully drained ladder.
func BestAsk(asks []models.OrderBookLevel) (price float64, ok bool) {
	for _, lvl := range asks {
		if lvl.Size <= 0 || lvl.Price <= 0 {
			continue
		}
		if !ok || lvl.Price < price {
			price, ok = lvl.Price, true
		}
	}
	return price, ok
}

// AlignOutcomes maps each of A's outcomes to the index of the same outcome
// on B. Names are compared case-insensitively; when the names do not line up
// one-to-one the outcomes are paired by position. -1 marks an outcome B
// does not have.
func AlignOutcomes(namesA, namesB []string) []int {
	out := make([]int, len(namesA))
	byName := make(map[string]int, len(namesB))
	for j, n := range namesB {
		byName[strings.ToLower(strings.TrimSpace(n))] = j
	}
	used := make(map[int]bool, len(namesB))
	aligned := len(byName) == len(namesB)
	for i, n := range namesA {
		j, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok || used[j] {
			aligned = false
			break
		}
		used[j] = true
		out[i] = j
	}
	if aligned {
		return out
	}
	for i := range out {
		out[i] = -1
		if i < len(namesB) {
			out[i] = i
		}
	}
	return out
}
