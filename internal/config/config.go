// Package config loads the process configuration once at startup.
// Settings are env-first (with optional .env), feeds and schedules come
// from a yaml file, and every value is validated before the process runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable process configuration.
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Scoring  ScoringConfig
	Trends   TrendsConfig
	LLM      LLMConfig
	Notify   NotifyConfig
	Ingest   IngestConfig
	Tickers  TickersConfig
	Paper    PaperConfig
	Reco     RecoConfig
	Redis    RedisConfig
}

// DatabaseConfig holds store access settings.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// HTTPConfig holds the admission server settings.
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ScoringConfig holds the confidence gates, bands and cadence.
type ScoringConfig struct {
	GateIntent      float64
	GateSuppression float64
	GateSpread      float64
	BandHigh        float64
	BandWatchlist   float64
	LookbackDays    int
	Version         string
}

// TrendsConfig holds the external-search validator settings.
type TrendsConfig struct {
	Enabled       bool
	BaseURL       string
	CacheTTL      time.Duration
	MinConfidence float64
	MinDelay      time.Duration
	Timeout       time.Duration
}

// LLMConfig holds the model-backed extraction settings.
type LLMConfig struct {
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// NotifyConfig holds the push gateway settings.
type NotifyConfig struct {
	GatewayURL   string
	Topic        string
	MaxAttempts  int
	ClaimLimit   int
	PollInterval time.Duration
	Timeout      time.Duration
}

// IngestConfig holds the conductor settings.
type IngestConfig struct {
	FeedsFile     string
	Feeds         []string
	PostLimit     int
	FeedDelay     time.Duration
	CycleInterval time.Duration
	AdmissionURL  string
	UserAgent     string
}

// TickersConfig holds the ticker-lookup provider settings.
type TickersConfig struct {
	APIKey     string
	BaseURL    string
	Enabled    bool
	MinRequest time.Duration
}

// PaperConfig holds the paper-position loop settings.
type PaperConfig struct {
	PriceURL     string
	PositionSize float64
	ProfitTarget float64
	StopLoss     float64
	MaxHoldDays  int
}

// RecoConfig holds the recommendation builder settings.
type RecoConfig struct {
	OutputDir     string
	EvidenceLimit int
	ExcerptMax    int
	ExcerptChars  int
}

// RedisConfig holds the optional cache backend address. Empty means the
// in-memory cache is used.
type RedisConfig struct {
	Addr string
	DB   int
}

// Load builds the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:             databaseURL(),
			MaxOpenConns:    envInt("DB_POOL_MAX", 10),
			MaxIdleConns:    envInt("DB_POOL_MIN", 2),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			QueryTimeout:    envDuration("DB_QUERY_TIMEOUT", 30*time.Second),
		},
		HTTP: HTTPConfig{
			Addr:         envStr("EVA_HTTP_ADDR", "127.0.0.1:9080"),
			ReadTimeout:  envDuration("EVA_HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: envDuration("EVA_HTTP_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  envDuration("EVA_HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Scoring: ScoringConfig{
			GateIntent:      envFloat("EVA_GATE_INTENT", 0.50),
			GateSuppression: envFloat("EVA_GATE_SUPPRESSION", 0.40),
			GateSpread:      envFloat("EVA_GATE_SPREAD", 0.25),
			BandHigh:        envFloat("EVA_BAND_HIGH", 0.60),
			BandWatchlist:   envFloat("EVA_BAND_WATCHLIST", 0.50),
			LookbackDays:    envInt("EVA_SCORE_LOOKBACK_DAYS", 7),
			Version:         envStr("EVA_SCORING_VERSION", "v1"),
		},
		Trends: TrendsConfig{
			Enabled:       envBool("TRENDS_ENABLED", true),
			BaseURL:       envStr("TRENDS_BASE_URL", "https://trends.google.com/trends/api"),
			CacheTTL:      time.Duration(envInt("TRENDS_CACHE_HOURS", 24)) * time.Hour,
			MinConfidence: envFloat("TRENDS_MIN_CONFIDENCE", 0.60),
			MinDelay:      envDuration("TRENDS_MIN_DELAY", 2*time.Second),
			Timeout:       envDuration("TRENDS_TIMEOUT", 25*time.Second),
		},
		LLM: LLMConfig{
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			Model:     envStr("EVA_MODEL", "claude-3-5-haiku-latest"),
			Timeout:   envDuration("EVA_LLM_TIMEOUT", 30*time.Second),
			MaxTokens: envInt("EVA_LLM_MAX_TOKENS", 1024),
		},
		Notify: NotifyConfig{
			GatewayURL:   envStr("NTFY_URL", "http://eva_ntfy:80"),
			Topic:        envStr("NTFY_TOPIC", "eva-recommendations"),
			MaxAttempts:  envInt("EVA_NOTIFY_MAX_ATTEMPTS", 5),
			ClaimLimit:   envInt("EVA_NOTIFY_CLAIM_LIMIT", 10),
			PollInterval: envDuration("NOTIFICATION_POLL_INTERVAL", 60*time.Second),
			Timeout:      envDuration("EVA_NOTIFY_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			FeedsFile:     envStr("EVA_FEEDS_CONFIG", ""),
			Feeds:         envList("EVA_FEEDS", []string{"BuyItForLife", "Frugal", "running"}),
			PostLimit:     envInt("EVA_INGEST_LIMIT", 25),
			FeedDelay:     envDuration("EVA_INGEST_FEED_DELAY", 2*time.Second),
			CycleInterval: envDuration("EVA_INGEST_INTERVAL", 15*time.Minute),
			AdmissionURL:  envStr("EVA_API_URL", "http://127.0.0.1:9080/intake/message"),
			UserAgent:     envStr("EVA_INGEST_USER_AGENT", "eva-finance/1.0 (text post ingestion)"),
		},
		Tickers: TickersConfig{
			APIKey:     os.Getenv("FMP_API_KEY"),
			BaseURL:    envStr("FMP_BASE_URL", "https://financialmodelingprep.com/stable"),
			Enabled:    envBool("FMP_ENABLED", true),
			MinRequest: time.Duration(envInt("FMP_RATE_LIMIT_MS", 500)) * time.Millisecond,
		},
		Paper: PaperConfig{
			PriceURL:     envStr("EVA_PRICE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			PositionSize: envFloat("EVA_PAPER_SIZE", 1000),
			ProfitTarget: envFloat("EVA_PAPER_PROFIT_TARGET", 0.15),
			StopLoss:     envFloat("EVA_PAPER_STOP_LOSS", -0.10),
			MaxHoldDays:  envInt("EVA_PAPER_MAX_HOLD_DAYS", 90),
		},
		Reco: RecoConfig{
			OutputDir:     envStr("EVA_RECO_OUTPUT_DIR", "output/recommendations"),
			EvidenceLimit: envInt("EVA_RECO_EVIDENCE_LIMIT", 50),
			ExcerptMax:    envInt("EVA_RECO_EXCERPT_MAX", 15),
			ExcerptChars:  envInt("EVA_RECO_EXCERPT_CHARS", 400),
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
			DB:   envInt("REDIS_DB", 0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database DSN required (set DATABASE_URL or POSTGRES_* variables)")
	}
	for name, v := range map[string]float64{
		"EVA_GATE_INTENT":      c.Scoring.GateIntent,
		"EVA_GATE_SUPPRESSION": c.Scoring.GateSuppression,
		"EVA_GATE_SPREAD":      c.Scoring.GateSpread,
		"EVA_BAND_HIGH":        c.Scoring.BandHigh,
		"EVA_BAND_WATCHLIST":   c.Scoring.BandWatchlist,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %v", name, v)
		}
	}
	if c.Scoring.BandWatchlist > c.Scoring.BandHigh {
		return fmt.Errorf("config: EVA_BAND_WATCHLIST (%v) must not exceed EVA_BAND_HIGH (%v)",
			c.Scoring.BandWatchlist, c.Scoring.BandHigh)
	}
	if c.Scoring.LookbackDays < 1 {
		return fmt.Errorf("config: EVA_SCORE_LOOKBACK_DAYS must be >= 1")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("config: EVA_NOTIFY_MAX_ATTEMPTS must be >= 1")
	}
	if c.Paper.StopLoss >= 0 {
		return fmt.Errorf("config: EVA_PAPER_STOP_LOSS must be negative")
	}
	if c.Paper.ProfitTarget <= 0 {
		return fmt.Errorf("config: EVA_PAPER_PROFIT_TARGET must be positive")
	}
	return nil
}

// databaseURL prefers DATABASE_URL and falls back to POSTGRES_* parts.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host := envStr("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	port := envStr("POSTGRES_PORT", "5432")
	db := envStr("POSTGRES_DB", "eva_finance")
	user := envStr("POSTGRES_USER", "eva")
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, db)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
