package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/crossarb/internal/arb"
	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/embed"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/liquidity"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matcher"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/normalize"
	"github.com/hetulpatel/crossarb/internal/polymarket"
	"github.com/hetulpatel/crossarb/internal/probable"
	"github.com/hetulpatel/crossarb/internal/queue"
	"github.com/hetulpatel/crossarb/internal/scheduler"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

const brokerWait = 45 * time.Second

// Options selects which sinks Wire attaches. A one-shot scan usually wants
// neither.
type Options struct {
	SQLite bool
	Kafka  bool
}

// Pipeline is a fully wired scheduler plus the handles a command may want.
type Pipeline struct {
	Scheduler *scheduler.Scheduler
	Store     *sqlstore.Store
	Redis     *redis.Client
}

// Wire builds the refresh pipeline from cfg. Redis, kafka, and embeddings are
// attached only when configured. The returned cleanup releases everything
// Wire opened, in reverse order.
func Wire(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	p := &Pipeline{}

	var (
		bookCache      cache.BookCache
		embeddingCache cache.EmbeddingCache
		seenCache      cache.OpportunityCache
	)
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		p.Redis = client
		bookCache = cache.NewRedisBookCache(client, cfg.Redis.BookTTL.Duration, "")
		embeddingCache = cache.NewRedisEmbeddingCache(client, cfg.Redis.EmbeddingTTL.Duration, "")
		seenCache = cache.NewRedisOpportunityCache(client, cfg.Redis.OpportunityTTL.Duration, "")
		logging.Infof("[wire] redis caches enabled at %s", cfg.Redis.Addr)
	}

	poly := polymarket.NewClient(polymarket.Config{
		MarketsURL: cfg.Polymarket.MarketsURL,
		BookURL:    cfg.Polymarket.BookURL,
		Timeout:    cfg.Polymarket.Timeout.Duration,
		Fetch:      fetchOptions(cfg.Polymarket),
		Throttle:   throttle(cfg.Polymarket),
	})
	prob := probable.NewClient(probable.Config{
		MarketsURL: cfg.Probable.MarketsURL,
		BookURL:    cfg.Probable.BookURL,
		Timeout:    cfg.Probable.Timeout.Duration,
		Fetch:      fetchOptions(cfg.Probable),
		Throttle:   throttle(cfg.Probable),
	})

	m, err := buildMatcher(cfg, embeddingCache)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	resolver := liquidity.NewResolver(liquidity.Config{
		Books: map[models.Venue]collectors.BookFetcher{
			poly.Venue(): poly,
			prob.Venue(): prob,
		},
		Cache:       bookCache,
		Workers:     cfg.Liquidity.Workers,
		BookTimeout: cfg.Liquidity.BookTimeout.Duration,
	})

	var sinks []scheduler.Sink
	if opts.SQLite {
		store, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		p.Store = store
		sinks = append(sinks, store)
	}
	if opts.Kafka && cfg.Kafka.Brokers != "" {
		brokers := kafka.ParseBrokers(cfg.Kafka.Brokers)
		waitCtx, cancel := context.WithTimeout(ctx, brokerWait)
		broker, err := kafka.WaitForBroker(waitCtx, brokers)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		spec := kafka.TopicSpec{
			Name:              cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}
		if n, err := kafka.EnsureTopic(ctx, broker, spec); err != nil {
			logging.Warnf("[wire] ensure topic %s: %v", cfg.Kafka.Topic, err)
		} else if n != spec.Partitions {
			logging.Warnf("[wire] topic %s has %d partitions, configured %d", cfg.Kafka.Topic, n, spec.Partitions)
		}
		writer := kafka.NewWriter(brokers, cfg.Kafka.Topic)
		closers = append(closers, func() { _ = writer.Close() })
		sinks = append(sinks, queue.NewPublisher(writer, seenCache, cfg.Kafka.MinImprovement))
		logging.Infof("[wire] publishing opportunities to %s on %s", cfg.Kafka.Topic, strings.Join(brokers, ","))
	}

	p.Scheduler = scheduler.New(scheduler.Deps{
		SourceA:    poly,
		SourceB:    prob,
		Normalizer: normalize.New(normalize.DefaultRules()),
		Matcher:    m,
		Resolver:   resolver,
		Sinks:      sinks,
	}, SchedulerConfig(cfg))

	return p, cleanup, nil
}

// SchedulerConfig maps the loaded configuration onto the scheduler's.
func SchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Interval:               cfg.Scheduler.Interval.Duration,
		MinInterval:            max(cfg.Polymarket.CacheWindow.Duration, cfg.Probable.CacheWindow.Duration),
		CycleTimeout:           cfg.Scheduler.CycleTimeout.Duration,
		SinkTimeout:            cfg.Scheduler.SinkTimeout.Duration,
		Keywords:               cfg.Matcher.Keywords,
		MinListingLiquidityUSD: cfg.Arbitrage.MinListingLiquidityUSD,
		Arbitrage: arb.Config{
			MinProfitFraction: cfg.Arbitrage.MinProfitFraction,
			MinValidPrice:     cfg.Arbitrage.MinValidPrice,
			MinLiquidityUSD:   cfg.Arbitrage.MinLiquidityUSD,
			SlippageTolerance: cfg.Arbitrage.SlippageTolerance,
			VerifyDepth:       cfg.Arbitrage.VerifyDepth,
		},
	}
}

func buildMatcher(cfg *config.Config, embeddingCache cache.EmbeddingCache) (*matcher.Matcher, error) {
	mc := matcher.Config{
		Threshold: cfg.Matcher.Threshold,
		Logger:    matcher.NewLogger(matcher.ParseLogMode(cfg.Matcher.LogMode), cfg.Matcher.LogFile),
	}
	if strings.EqualFold(cfg.Matcher.Scorer, "embedding") {
		client, err := embed.New(embed.Config{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("wire: embedding scorer: %w", err)
		}
		mc.Scorer = matcher.NewEmbeddingScorer(client, embeddingCache, client.Model(), cfg.Embedding.Timeout.Duration)
		logging.Infof("[wire] fuzzy pass scoring with %s embeddings", client.Model())
	}
	return matcher.New(mc), nil
}

func fetchOptions(v config.VenueConfig) collectors.FetchOptions {
	return collectors.FetchOptions{MaxPages: v.MaxPages, PageSize: v.PageSize, Workers: v.Workers}
}

func throttle(v config.VenueConfig) *collectors.Throttle {
	if v.RPS <= 0 {
		return nil
	}
	return collectors.NewThrottle(v.RPS, v.Burst, v.Cooldown.Duration)
}
