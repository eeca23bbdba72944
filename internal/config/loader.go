package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges an optional TOML file over Defaults, loads .env if present, and
// applies ARB_* environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "ARB_LOG_LEVEL")

	applyVenue(&cfg.Polymarket, "ARB_POLYMARKET")
	applyVenue(&cfg.Probable, "ARB_PROBABLE")

	setFloat64(&cfg.Matcher.Threshold, "ARB_MATCH_THRESHOLD")
	setStr(&cfg.Matcher.Scorer, "ARB_MATCH_SCORER")
	setStringSlice(&cfg.Matcher.Keywords, "ARB_MATCH_KEYWORDS")
	setStr(&cfg.Matcher.LogMode, "ARB_MATCH_LOG_MODE")
	setStr(&cfg.Matcher.LogFile, "ARB_MATCH_LOG_FILE")

	setFloat64(&cfg.Arbitrage.MinProfitFraction, "ARB_MIN_PROFIT_FRACTION")
	setFloat64(&cfg.Arbitrage.MinValidPrice, "ARB_MIN_VALID_PRICE")
	setFloat64(&cfg.Arbitrage.MinLiquidityUSD, "ARB_MIN_LIQUIDITY_USD")
	setFloat64(&cfg.Arbitrage.SlippageTolerance, "ARB_SLIPPAGE_TOLERANCE")
	setBool(&cfg.Arbitrage.VerifyDepth, "ARB_VERIFY_DEPTH")
	setFloat64(&cfg.Arbitrage.MinListingLiquidityUSD, "ARB_MIN_LISTING_LIQUIDITY_USD")

	setInt(&cfg.Liquidity.Workers, "ARB_BOOK_WORKERS")
	setDuration(&cfg.Liquidity.BookTimeout, "ARB_BOOK_TIMEOUT")

	setDuration(&cfg.Scheduler.Interval, "ARB_REFRESH_INTERVAL")
	setDuration(&cfg.Scheduler.CycleTimeout, "ARB_CYCLE_TIMEOUT")
	setDuration(&cfg.Scheduler.SinkTimeout, "ARB_SINK_TIMEOUT")

	setStr(&cfg.Redis.Addr, "ARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARB_REDIS_DB")
	setDuration(&cfg.Redis.BookTTL, "ARB_REDIS_BOOK_TTL")

	setStr(&cfg.Kafka.Brokers, "ARB_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "ARB_KAFKA_TOPIC")
	setFloat64(&cfg.Kafka.MinImprovement, "ARB_KAFKA_MIN_IMPROVEMENT")
	setInt(&cfg.Kafka.Partitions, "ARB_KAFKA_PARTITIONS")
	setInt(&cfg.Kafka.ReplicationFactor, "ARB_KAFKA_REPLICATION_FACTOR")

	setStr(&cfg.SQLite.Path, "ARB_SQLITE_PATH")

	setStr(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.Embedding.APIKey, "ARB_EMBEDDING_API_KEY")
	setStr(&cfg.Embedding.BaseURL, "ARB_EMBEDDING_BASE_URL")
	setStr(&cfg.Embedding.Model, "ARB_EMBEDDING_MODEL")

	setStr(&cfg.API.Addr, "ARB_API_ADDR")
	setStringSlice(&cfg.API.CORSOrigins, "ARB_API_CORS_ORIGINS")
}

func applyVenue(v *VenueConfig, prefix string) {
	setStr(&v.MarketsURL, prefix+"_MARKETS_URL")
	setStr(&v.BookURL, prefix+"_BOOK_URL")
	setFloat64(&v.RPS, prefix+"_RPS")
	setInt(&v.Burst, prefix+"_BURST")
	setDuration(&v.Cooldown, prefix+"_COOLDOWN")
	setDuration(&v.Timeout, prefix+"_TIMEOUT")
	setInt(&v.PageSize, prefix+"_PAGE_SIZE")
	setInt(&v.MaxPages, prefix+"_MAX_PAGES")
	setInt(&v.Workers, prefix+"_WORKERS")
	setDuration(&v.CacheWindow, prefix+"_CACHE_WINDOW")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
