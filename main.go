package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trading-assistant/internal/api"
	"trading-assistant/internal/autotrader"
	"trading-assistant/internal/events"
	"trading-assistant/internal/monitor"
	"trading-assistant/internal/order"
	"trading-assistant/internal/persistence"
	"trading-assistant/internal/risk"
	"trading-assistant/internal/strategy"
	"trading-assistant/pkg/config"
	"trading-assistant/pkg/db"
	"trading-assistant/pkg/exchanges/kucoin"
	"trading-assistant/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger config comes from cfg, so fall back to defaults here.
		l := logger.New("info", "console")
		l.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "dev"
	}
	log.Info().Str("version", buildVersion).Str("port", cfg.Port).Str("db", cfg.DBPath).Msg("starting trading assistant")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	(&monitor.Monitor{Bus: bus, Metrics: metrics, Log: logger.Component(log, "monitor")}).Start(ctx)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	signalLog := persistence.NewSignalLog(database, 50, time.Second, logger.Component(log, "signal_log")).
		WithLatency(metrics.DBLatency)
	defer func() {
		if err := signalLog.Close(); err != nil {
			log.Error().Err(err).Msg("flush signal log")
		}
	}()

	// Exchange
	client := kucoin.New(kucoin.Config{
		APIKey:         cfg.KuCoinAPIKey,
		APISecret:      cfg.KuCoinAPISecret,
		APIPassphrase:  cfg.KuCoinAPIPassphrase,
		KeyVersion:     cfg.KuCoinKeyVersion,
		SpotBaseURL:    cfg.KuCoinSpotURL,
		FuturesBaseURL: cfg.KuCoinFuturesURL,
		Timeout:        cfg.ExchangeTimeout,
	}, logger.Component(log, "kucoin"))
	if !cfg.HasExchangeCredentials() {
		log.Warn().Msg("KuCoin credentials not set; signed actions will return CONFIGURATION_ERROR")
	}
	client.StartTimeSync(ctx)
	metrics.SetRateLimitSource(client.RateLimitUsage)

	// Orders
	policy, err := risk.NewPolicy(cfg.SizingMode)
	if err != nil {
		log.Fatal().Err(err).Msg("sizing policy")
	}
	executor := order.NewExecutor(client, database, policy, bus, logger.Component(log, "executor"))
	executor.Metrics = metrics
	executor.Timeout = cfg.ExchangeTimeout
	log.Info().Str("policy", policy.Name()).Msg("order executor ready")

	// Auto trader
	session := autotrader.NewSession(autotrader.SessionConfig{
		Balance:          cfg.AccountBalance,
		RiskPercent:      cfg.RiskPercent,
		MaxPositionRatio: cfg.MaxPositionRatio,
		MaxDailyTrades:   cfg.MaxDailyTrades,
	})
	trader := autotrader.NewTrader(session, executor, cfg.OrderDelay, logger.Component(log, "autotrader"))
	scanner := &autotrader.Scanner{
		Candles:  client,
		Strategy: strategy.NewStructureTrend(),
		Recorder: signalLog,
		Bus:      bus,
		Metrics:  metrics,
		Log:      logger.Component(log, "scanner"),
	}
	watchlist := loadWatchlist(cfg.WatchlistPath, log)

	// API
	server := api.NewServer(&api.Server{
		Bus:       bus,
		DB:        database,
		Exchange:  client,
		Orders:    executor,
		Scanner:   scanner,
		Trader:    trader,
		Watchlist: watchlist,
		Metrics:   metrics,
		Meta: api.SystemMeta{
			Venue:      "kucoin",
			SizingMode: policy.Name(),
			Version:    buildVersion,
		},
		Log: logger.Component(log, "api"),
	}, api.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set; API is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
	cancel()
}

// loadWatchlist returns the configured watch items; a missing file means the
// caller must name symbols explicitly.
func loadWatchlist(path string, log zerolog.Logger) []autotrader.WatchItem {
	if path == "" {
		return nil
	}
	wl, err := autotrader.LoadWatchlist(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("no watchlist file")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("watchlist ignored")
		return nil
	}
	log.Info().Int("symbols", len(wl.Symbols)).Str("path", path).Msg("watchlist loaded")
	return wl.Symbols
}
