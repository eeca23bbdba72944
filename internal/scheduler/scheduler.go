package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/normalize"
)

const (
	defaultInterval     = 180 * time.Second
	defaultCycleTimeout = 150 * time.Second
	defaultSinkTimeout  = 20 * time.Second
)

// ErrCycleTimeout is returned when a cycle overruns its deadline. The
// partial result is discarded and the previous snapshot stays current.
var ErrCycleTimeout = errors.New("refresh cycle timed out")

// Resolver attaches live quotes to matched pairs.
type Resolver interface {
	ResolveAll(ctx context.Context, pairs []models.MatchedPair) []models.EnrichedPair
}

// Sink receives every published snapshot. Sink failures never affect the
// in-memory snapshot.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap *models.Snapshot) error
}

type Config struct {
	// Interval between cycle starts. Raised to MinInterval when lower.
	Interval time.Duration
	// MinInterval is the slowest venue's listing cache window.
	MinInterval  time.Duration
	CycleTimeout time.Duration
	SinkTimeout  time.Duration

	Keywords               []string
	MinListingLiquidityUSD float64
	Arbitrage              arb.Config
}

// Deps are the pipeline stages.
type Deps struct {
	SourceA    collectors.Collector
	SourceB    collectors.Collector
	Normalizer *normalize.Normalizer
	Matcher    *matcher.Matcher
	Resolver   Resolver
	Sinks      []Sink
}

// Scheduler runs ingest, normalize, match, resolve, and evaluate as one
// cycle and publishes each result as an immutable snapshot.
type Scheduler struct {
	deps    Deps
	cfg     Config
	current atomic.Pointer[models.Snapshot]
}

func New(deps Deps, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Interval < cfg.MinInterval {
		logging.Infof("[scheduler] interval %s raised to source cache window %s", cfg.Interval, cfg.MinInterval)
		cfg.Interval = cfg.MinInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.New(normalize.DefaultRules())
	}
	if deps.Matcher == nil {
		deps.Matcher = matcher.New(matcher.Config{})
	}
	return &Scheduler{deps: deps, cfg: cfg}
}

// Current returns the latest published snapshot, or nil before the first
// cycle completes.
func (s *Scheduler) Current() *models.Snapshot {
	return s.current.Load()
}

func (s *Scheduler) Interval() time.Duration {
	return s.cfg.Interval
}

// Run executes a cycle immediately and then every Interval until ctx is
// done. A failed cycle is logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Infof("[scheduler] starting (interval=%s cycle_timeout=%s)", s.cfg.Interval, s.cfg.CycleTimeout)
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Infof("[scheduler] stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	snap, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Errorf("[scheduler] cycle failed: %v", err)
		}
		return
	}
	logging.Infof("[scheduler] snapshot %s: %d+%d records, %d pairs, %d opportunities in %s",
		snap.ID, snap.RecordsA, snap.RecordsB, len(snap.Pairs), len(snap.Opportunities), snap.Duration().Round(time.Millisecond))
}

// RunOnce executes one cycle, publishes its snapshot, and runs the sinks.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.Snapshot, error) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	snap := s.cycle(cycleCtx)
	if err := cycleCtx.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrCycleTimeout, s.cfg.CycleTimeout)
	}

	s.current.Store(snap)
	s.publish(ctx, snap)
	return snap, nil
}

func (s *Scheduler) cycle(ctx context.Context) *models.Snapshot {
	snap := &models.Snapshot{ID: uuid.NewString(), StartedAt: time.Now().UTC()}

	results := collectors.FetchAll(ctx, s.deps.SourceA, s.deps.SourceB)
	recordsA, recordsB := results[0].Records, results[1].Records
	for _, r := range results {
		if r.Err != nil {
			if snap.SourceErrors == nil {
				snap.SourceErrors = make(map[models.Venue]string)
			}
			snap.SourceErrors[r.Venue] = r.Err.Error()
		}
	}
	snap.RecordsA, snap.RecordsB = len(recordsA), len(recordsB)

	recordsA = s.prepare(recordsA)
	recordsB = s.prepare(recordsB)

	snap.Pairs = s.deps.Matcher.MatchContext(ctx, recordsA, recordsB)
	if len(snap.Pairs) > 0 && s.deps.Resolver != nil {
		enriched := s.deps.Resolver.ResolveAll(ctx, snap.Pairs)
		snap.Opportunities = arb.Evaluate(enriched, s.cfg.Arbitrage)
	}
	snap.CompletedAt = time.Now().UTC()
	return snap
}

// prepare normalizes titles and applies the keyword and listing-liquidity
// pre-filters. It returns fresh records; the fetched slice is not modified.
func (s *Scheduler) prepare(records []models.MarketRecord) []models.MarketRecord {
	records = matcher.FilterByKeywords(records, s.cfg.Keywords)
	out := make([]models.MarketRecord, 0, len(records))
	for _, r := range records {
		if r.LiquidityUSD < s.cfg.MinListingLiquidityUSD {
			continue
		}
		r.NormalizedKey = s.deps.Normalizer.Normalize(r.RawTitle)
		out = append(out, r)
	}
	return out
}

func (s *Scheduler) publish(ctx context.Context, snap *models.Snapshot) {
	for _, sink := range s.deps.Sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
		if err := sink.Publish(sinkCtx, snap); err != nil {
			logging.Errorf("[scheduler] sink %s: %v", sink.Name(), err)
		}
		cancel()
	}
}
