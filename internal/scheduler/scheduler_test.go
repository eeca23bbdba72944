package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/liquidity"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/models"
)

type stubSource struct {
	venue   models.Venue
	records []models.MarketRecord
	books   map[string][]models.OrderBookLevel
	err     error
}

func (s *stubSource) Venue() models.Venue { return s.venue }

func (s *stubSource) FetchRecords(context.Context) ([]models.MarketRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.MarketRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *stubSource) FetchBook(_ context.Context, tokenID string) ([]models.OrderBookLevel, error) {
	return s.books[tokenID], nil
}

func binary(venue models.Venue, id, title, prefix string, liquidityUSD float64) models.MarketRecord {
	return models.MarketRecord{
		Venue:           venue,
		SourceID:        id,
		RawTitle:        title,
		OutcomeNames:    []string{"Yes", "No"},
		OutcomePrices:   []float64{0.5, 0.5},
		OutcomeTokenIDs: []string{prefix + "-yes", prefix + "-no"},
		LiquidityUSD:    liquidityUSD,
		Active:          true,
	}
}

// btcScenario: A sells YES at 0.60, B sells NO at 0.35.
func btcScenario() (*stubSource, *stubSource) {
	a := &stubSource{
		venue:   models.VenuePolymarket,
		records: []models.MarketRecord{binary(models.VenuePolymarket, "a1", "BTC above 100k?", "a1", 5000)},
		books: map[string][]models.OrderBookLevel{
			"a1-yes": {{Price: 0.60, Size: 100}},
			"a1-no":  {{Price: 0.42, Size: 100}},
		},
	}
	b := &stubSource{
		venue: models.VenueProbable,
		records: []models.MarketRecord{
			binary(models.VenueProbable, "b1", "btc above 100k", "b1", 800),
			binary(models.VenueProbable, "b2", "Lakers win the title", "b2", 800),
		},
		books: map[string][]models.OrderBookLevel{
			"b1-yes": {{Price: 0.66, Size: 100}},
			"b1-no":  {{Price: 0.35, Size: 200}},
		},
	}
	return a, b
}

func newScheduler(a, b *stubSource, cfg Config, sinks ...Sink) *Scheduler {
	if cfg.Arbitrage == (arb.Config{}) {
		cfg.Arbitrage = arb.DefaultConfig()
	}
	resolver := liquidity.NewResolver(liquidity.Config{Books: map[models.Venue]collectors.BookFetcher{
		a.venue: a,
		b.venue: b,
	}})
	return New(Deps{SourceA: a, SourceB: b, Resolver: resolver, Sinks: sinks}, cfg)
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Publish(_ context.Context, snap *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestRunOnce_EndToEnd(t *testing.T) {
	a, b := btcScenario()
	sink := &recordingSink{}
	s := newScheduler(a, b, Config{}, sink)
	assert.Nil(t, s.Current())

	snap, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, s.Current())
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 1, snap.RecordsA)
	assert.Equal(t, 2, snap.RecordsB)
	assert.Empty(t, snap.SourceErrors)

	require.Len(t, snap.Pairs, 1)
	assert.Equal(t, models.MatchExactTitle, snap.Pairs[0].Method)
	assert.Equal(t, "btc above", snap.Pairs[0].A.NormalizedKey)

	require.Len(t, snap.Opportunities, 1)
	op := snap.Opportunities[0]
	assert.Equal(t, models.StrategyAYesBNo, op.Strategy)
	assert.InDelta(t, 0.95, op.UnitCost, 1e-12)
	assert.InDelta(t, 0.0526, op.ProfitFraction, 1e-4)
	assert.InDelta(t, 60, op.CapacityUSD, 1e-9)

	require.Equal(t, 1, sink.count())
	assert.Same(t, snap, sink.snaps[0])
	assert.False(t, snap.CompletedAt.Before(snap.StartedAt))
}

// deadlineScorer records the context each cycle hands to the scorer.
type deadlineScorer struct {
	mu       sync.Mutex
	cycles   int
	deadline bool
}

func (d *deadlineScorer) BeginCycle(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycles++
	_, d.deadline = ctx.Deadline()
}

func (d *deadlineScorer) Score(string, string) float64 { return 0 }

func TestRunOnce_ScorerSeesCycleDeadline(t *testing.T) {
	a, b := btcScenario()
	scorer := &deadlineScorer{}
	s := newScheduler(a, b, Config{CycleTimeout: time.Minute})
	s.deps.Matcher = matcher.New(matcher.Config{Scorer: scorer})

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	assert.Equal(t, 2, scorer.cycles)
	assert.True(t, scorer.deadline, "matching should run under the cycle timeout")
}

func TestRunOnce_EmptyBookYieldsNoOpportunity(t *testing.T) {
	a, b := btcScenario()
	// listing still advertises 0.01 but the book is empty
	b.records[0].OutcomePrices = []float64{0.99, 0.01}
	delete(b.books, "b1-no")

	snap, err := newScheduler(a, b, Config{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Pairs, 1)
	assert.Empty(t, snap.Opportunities)
}

func TestRunOnce_SourceFailure(t *testing.T) {
	a, b := btcScenario()
	b.err = errors.New("probable down")

	snap, err := newScheduler(a, b, Config{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RecordsB)
	assert.Empty(t, snap.Pairs)
	assert.Empty(t, snap.Opportunities)
	assert.Contains(t, snap.SourceErrors[models.VenueProbable], "probable down")
}

func TestRunOnce_PreFilters(t *testing.T) {
	a, b := btcScenario()

	snap, err := newScheduler(a, b, Config{MinListingLiquidityUSD: 1000}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Pairs, "B listing liquidity 800 is under the floor")

	snap, err = newScheduler(a, b, Config{Keywords: []string{"lakers"}}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Pairs)
}

type blockingResolver struct{}

func (blockingResolver) ResolveAll(ctx context.Context, pairs []models.MatchedPair) []models.EnrichedPair {
	<-ctx.Done()
	return nil
}

func TestRunOnce_TimeoutKeepsPreviousSnapshot(t *testing.T) {
	a, b := btcScenario()
	s := newScheduler(a, b, Config{CycleTimeout: time.Second})
	first, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	sink := &recordingSink{}
	slow := New(Deps{SourceA: a, SourceB: b, Resolver: blockingResolver{}, Sinks: []Sink{sink}}, Config{CycleTimeout: 50 * time.Millisecond})
	slow.current.Store(first)

	_, err = slow.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCycleTimeout)
	assert.Same(t, first, slow.Current())
	assert.Equal(t, 0, sink.count())
}

func TestRunOnce_SinkFailureDoesNotBlockSwap(t *testing.T) {
	a, b := btcScenario()
	failing := &recordingSink{err: errors.New("disk full")}
	after := &recordingSink{}
	s := newScheduler(a, b, Config{}, failing, after)

	snap, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, s.Current())
	assert.Equal(t, 1, after.count())
}

func TestNew_IntervalRaisedToCacheWindow(t *testing.T) {
	a, b := btcScenario()
	assert.Equal(t, 180*time.Second, newScheduler(a, b, Config{}).Interval())
	assert.Equal(t, 3*time.Minute, newScheduler(a, b, Config{Interval: time.Second, MinInterval: 3 * time.Minute}).Interval())
	assert.Equal(t, 5*time.Minute, newScheduler(a, b, Config{Interval: 5 * time.Minute, MinInterval: 3 * time.Minute}).Interval())
}

func TestRun_FirstCycleIsImmediate(t *testing.T) {
	a, b := btcScenario()
	var published atomic.Int32
	sink := &countingSink{n: &published}
	s := newScheduler(a, b, Config{Interval: time.Hour}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Current() != nil }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(1), published.Load())
}

type countingSink struct{ n *atomic.Int32 }

func (c *countingSink) Name() string { return "counting" }
func (c *countingSink) Publish(context.Context, *models.Snapshot) error {
	c.n.Add(1)
	return nil
}

func TestCurrent_ReadersSeeWholeSnapshots(t *testing.T) {
	a, b := btcScenario()
	s := newScheduler(a, b, Config{})
	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Current()
				if len(snap.Opportunities) > 0 {
					assert.Equal(t, snap.Pairs[0].ID(), snap.Opportunities[0].PairID)
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
