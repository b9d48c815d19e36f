package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trading-assistant/internal/autotrader"
	"trading-assistant/internal/events"
	"trading-assistant/internal/monitor"
	"trading-assistant/pkg/db"
	exchange "trading-assistant/pkg/exchanges/common"
)

// DefaultRequestTimeout bounds one HTTP request, auto-trader runs included.
const DefaultRequestTimeout = 60 * time.Second

// Exchange is the read side of the venue the proxy forwards to.
type Exchange interface {
	autotrader.CandleSource
	HasCredentials() bool
	Accounts(ctx context.Context, m exchange.MarketType) (json.RawMessage, error)
	Symbols(ctx context.Context) ([]json.RawMessage, error)
	Tickers(ctx context.Context) (map[string]float64, error)
}

// Server wires HTTP endpoints around the exchange, order executor and event bus.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Exchange  Exchange
	Orders    autotrader.Placer
	Scanner   *autotrader.Scanner
	Trader    *autotrader.Trader
	Watchlist []autotrader.WatchItem
	Metrics   *monitor.SystemMetrics
	Meta      SystemMeta
	Log       zerolog.Logger

	upgrader websocket.Upgrader
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Venue      string `json:"venue"`
	SizingMode string `json:"sizingMode"`
	Version    string `json:"version"`
}

// Options configures the HTTP surface.
type Options struct {
	JWTSecret      string // empty disables auth
	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewServer(s *Server, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	r := gin.New()
	r.Use(RecoveryMiddleware(s.Log))
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(s.Log, s.Metrics))
	r.Use(RateLimitMiddleware(s.Log))
	r.Use(CORSMiddleware(opts.CORSOrigins))

	s.Router = r
	s.upgrader = newUpgrader(opts.CORSOrigins)
	s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) {
	s.Router.GET("/health", s.health)

	var auth []gin.HandlerFunc
	if opts.JWTSecret != "" {
		auth = append(auth, AuthMiddleware(opts.JWTSecret))
	}

	// Long-lived, so no request timeout.
	s.Router.GET("/ws", append(auth, s.websocket)...)

	api := s.Router.Group("/api", auth...)
	api.Use(TimeoutMiddleware(opts.RequestTimeout))
	{
		api.POST("/proxy", s.proxy)
		api.GET("/orders", s.getOrders)
		api.GET("/orders/:id", s.getOrder)
		api.GET("/signals", s.getSignals)
		api.GET("/session", s.getSession)
		api.GET("/metrics", s.getMetrics)
		api.GET("/metrics/prom", s.getPromMetrics)
	}
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":              "ok",
		"venue":               s.Meta.Venue,
		"version":             s.Meta.Version,
		"exchangeCredentials": s.Exchange != nil && s.Exchange.HasCredentials(),
	}
	if s.DB != nil {
		if err := s.DB.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["db"] = err.Error()
		} else {
			body["db"] = "ok"
		}
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}
