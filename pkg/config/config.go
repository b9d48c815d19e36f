package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading assistant.
type Config struct {
	Port string

	// KuCoin
	KuCoinAPIKey        string
	KuCoinAPISecret     string
	KuCoinAPIPassphrase string
	KuCoinKeyVersion    int
	KuCoinSpotURL       string
	KuCoinFuturesURL    string
	ExchangeTimeout     time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "console"

	// Order sizing
	SizingMode string // "clamp" (default) or "reject"

	// Account session / auto trader
	AccountBalance   float64
	RiskPercent      float64 // decimal (0.04 = 4%)
	MaxPositionRatio float64 // cap on position value as share of balance
	MaxDailyTrades   int
	OrderDelay       time.Duration
	WatchlistPath    string

	// HTTP surface
	JWTSecret   string // empty disables auth
	CORSOrigins []string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		KuCoinAPIKey:        os.Getenv("KUCOIN_API_KEY"),
		KuCoinAPISecret:     os.Getenv("KUCOIN_API_SECRET"),
		KuCoinAPIPassphrase: os.Getenv("KUCOIN_API_PASSPHRASE"),
		KuCoinKeyVersion:    getEnvInt("KUCOIN_API_KEY_VERSION", 2),
		KuCoinSpotURL:       getEnv("KUCOIN_SPOT_URL", "https://api.kucoin.com"),
		KuCoinFuturesURL:    getEnv("KUCOIN_FUTURES_URL", "https://api-futures.kucoin.com"),
		ExchangeTimeout:     getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second),
		DBPath:              getEnv("DB_PATH", "./data/trading.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "console")),
		SizingMode:          strings.ToLower(getEnv("SIZING_MODE", "clamp")),
		AccountBalance:      getEnvFloat("ACCOUNT_BALANCE", 1000),
		RiskPercent:         getEnvFloat("RISK_PERCENT", 0.04),
		MaxPositionRatio:    getEnvFloat("MAX_POSITION_RATIO", 0.8),
		MaxDailyTrades:      getEnvInt("MAX_DAILY_TRADES", 5),
		OrderDelay:          getEnvDuration("ORDER_DELAY", time.Second),
		WatchlistPath:       getEnv("WATCHLIST_PATH", "watchlist.yaml"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CORSOrigins:         splitAndTrim(getEnv("CORS_ORIGINS", "*")),
	}, nil
}

// HasExchangeCredentials reports whether every secret needed for signed
// KuCoin calls is present.
func (c *Config) HasExchangeCredentials() bool {
	return c.KuCoinAPIKey != "" && c.KuCoinAPISecret != "" && c.KuCoinAPIPassphrase != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
