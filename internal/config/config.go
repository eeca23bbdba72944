package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full engine configuration.
type Config struct {
	LogLevel string `toml:"log_level"`

	Polymarket VenueConfig     `toml:"polymarket"`
	Probable   VenueConfig     `toml:"probable"`
	Matcher    MatcherConfig   `toml:"matcher"`
	Arbitrage  ArbConfig       `toml:"arbitrage"`
	Liquidity  LiquidityConfig `toml:"liquidity"`
	Scheduler  SchedulerConfig `toml:"scheduler"`
	Redis      RedisConfig     `toml:"redis"`
	Kafka      KafkaConfig     `toml:"kafka"`
	SQLite     SQLiteConfig    `toml:"sqlite"`
	Embedding  EmbeddingConfig `toml:"embedding"`
	API        APIConfig       `toml:"api"`
}

// VenueConfig tunes one listing source.
type VenueConfig struct {
	MarketsURL string  `toml:"markets_url"`
	BookURL    string  `toml:"book_url"`
	RPS        float64 `toml:"rps"`
	Burst      int     `toml:"burst"`
	// Cooldown suspends all requests to the venue after a 429.
	Cooldown Duration `toml:"cooldown"`
	Timeout  Duration `toml:"timeout"`
	PageSize int      `toml:"page_size"`
	MaxPages int      `toml:"max_pages"`
	Workers  int      `toml:"workers"`
	// CacheWindow is how long the venue caches listing responses; polling
	// faster only returns stale pages.
	CacheWindow Duration `toml:"cache_window"`
}

type MatcherConfig struct {
	Threshold float64  `toml:"threshold"`
	Scorer    string   `toml:"scorer"`
	Keywords  []string `toml:"keywords"`
	LogMode   string   `toml:"log_mode"`
	LogFile   string   `toml:"log_file"`
}

type ArbConfig struct {
	MinProfitFraction float64 `toml:"min_profit_fraction"`
	MinValidPrice     float64 `toml:"min_valid_price"`
	MinLiquidityUSD   float64 `toml:"min_liquidity_usd"`
	SlippageTolerance float64 `toml:"slippage_tolerance"`
	VerifyDepth       bool    `toml:"verify_depth"`
	// MinListingLiquidityUSD drops records by their advertised liquidity
	// before any book is fetched.
	MinListingLiquidityUSD float64 `toml:"min_listing_liquidity_usd"`
}

type LiquidityConfig struct {
	Workers     int      `toml:"workers"`
	BookTimeout Duration `toml:"book_timeout"`
}

type SchedulerConfig struct {
	Interval     Duration `toml:"interval"`
	CycleTimeout Duration `toml:"cycle_timeout"`
	SinkTimeout  Duration `toml:"sink_timeout"`
}

type RedisConfig struct {
	Addr           string   `toml:"addr"`
	Password       string   `toml:"password"`
	DB             int      `toml:"db"`
	BookTTL        Duration `toml:"book_ttl"`
	EmbeddingTTL   Duration `toml:"embedding_ttl"`
	OpportunityTTL Duration `toml:"opportunity_ttl"`
}

type KafkaConfig struct {
	Brokers        string  `toml:"brokers"`
	Topic          string  `toml:"topic"`
	MinImprovement float64 `toml:"min_improvement"`
	// Partitions and ReplicationFactor apply when the topic is created.
	// Events are keyed by pair id, so each pair stays ordered on one
	// partition whatever the count.
	Partitions        int `toml:"partitions"`
	ReplicationFactor int `toml:"replication_factor"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	APIKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

type APIConfig struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Duration decodes TOML strings such as "180s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func dur(d time.Duration) Duration { return Duration{Duration: d} }

// Defaults returns a runnable configuration. Optional integrations (redis,
// kafka, embeddings, API) stay off until an address or key is set.
func Defaults() Config {
	venue := VenueConfig{
		RPS:         5,
		Burst:       5,
		Cooldown:    dur(30 * time.Second),
		Timeout:     dur(20 * time.Second),
		Workers:     5,
		CacheWindow: dur(180 * time.Second),
	}
	poly := venue
	poly.PageSize = 500
	prob := venue
	prob.PageSize = 100

	return Config{
		LogLevel:   "info",
		Polymarket: poly,
		Probable:   prob,
		Matcher: MatcherConfig{
			Threshold: 75,
			Scorer:    "tokenset",
			LogMode:   "quiet",
		},
		Arbitrage: ArbConfig{
			MinProfitFraction: 0.01,
			MinValidPrice:     0.01,
			MinLiquidityUSD:   0,
			SlippageTolerance: 0.02,
			VerifyDepth:       true,
		},
		Liquidity: LiquidityConfig{
			Workers:     8,
			BookTimeout: dur(10 * time.Second),
		},
		Scheduler: SchedulerConfig{
			Interval:     dur(180 * time.Second),
			CycleTimeout: dur(150 * time.Second),
			SinkTimeout:  dur(20 * time.Second),
		},
		Redis: RedisConfig{
			BookTTL:        dur(15 * time.Second),
			EmbeddingTTL:   dur(7 * 24 * time.Hour),
			OpportunityTTL: dur(time.Hour),
		},
		Kafka: KafkaConfig{
			Topic:             "crossarb.opportunities",
			MinImprovement:    0.001,
			Partitions:        3,
			ReplicationFactor: 1,
		},
		SQLite: SQLiteConfig{Path: "data/crossarb.db"},
		Embedding: EmbeddingConfig{
			Model:   "text-embedding-3-small",
			Timeout: dur(15 * time.Second),
		},
		API: APIConfig{CORSOrigins: []string{"*"}},
	}
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Matcher.Threshold > 0 && c.Matcher.Threshold <= 100, "matcher.threshold %.2f outside (0,100]", c.Matcher.Threshold)
	switch strings.ToLower(c.Matcher.Scorer) {
	case "tokenset", "":
	case "embedding":
		check(c.Embedding.APIKey != "", "matcher.scorer=embedding requires embedding.api_key")
	default:
		check(false, "matcher.scorer %q is not tokenset or embedding", c.Matcher.Scorer)
	}

	a := c.Arbitrage
	check(a.MinProfitFraction >= 0 && a.MinProfitFraction < 1, "arbitrage.min_profit_fraction %.4f outside [0,1)", a.MinProfitFraction)
	check(a.MinValidPrice >= 0 && a.MinValidPrice < 1, "arbitrage.min_valid_price %.4f outside [0,1)", a.MinValidPrice)
	check(a.MinLiquidityUSD >= 0, "arbitrage.min_liquidity_usd must be >= 0")
	check(a.SlippageTolerance >= 0, "arbitrage.slippage_tolerance must be >= 0")
	check(a.MinListingLiquidityUSD >= 0, "arbitrage.min_listing_liquidity_usd must be >= 0")

	for name, v := range map[string]VenueConfig{"polymarket": c.Polymarket, "probable": c.Probable} {
		check(v.RPS >= 0, "%s.rps must be >= 0", name)
		check(v.Workers >= 0, "%s.workers must be >= 0", name)
		check(v.PageSize >= 0, "%s.page_size must be >= 0", name)
		check(v.Cooldown.Duration >= 0, "%s.cooldown must be >= 0", name)
	}

	check(c.Kafka.Partitions > 0, "kafka.partitions must be positive")
	check(c.Kafka.ReplicationFactor > 0, "kafka.replication_factor must be positive")

	check(c.Scheduler.Interval.Duration > 0, "scheduler.interval must be positive")
	check(c.Scheduler.CycleTimeout.Duration > 0, "scheduler.cycle_timeout must be positive")

	return errors.Join(errs...)
}

// EffectiveInterval is the refresh interval raised to the slowest venue's
// cache window.
func (c *Config) EffectiveInterval() time.Duration {
	return max(c.Scheduler.Interval.Duration, c.Polymarket.CacheWindow.Duration, c.Probable.CacheWindow.Duration)
}
