package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trading-assistant/internal/autotrader"
	"trading-assistant/internal/order"
	"trading-assistant/internal/strategy"
	exchange "trading-assistant/pkg/exchanges/common"
	"trading-assistant/pkg/market"
)

// klineTail is how many recent candles generate_signal returns for charting.
const klineTail = 20

// Kind reported when the auto trader has no trades left today.
const kindDailyLimit = "DAILY_LIMIT_REACHED"

// proxyRequest is the body of POST /api/proxy. Only the fields the action
// needs are read.
type proxyRequest struct {
	Action      string         `json:"action"`
	Symbol      string         `json:"symbol"`
	Symbols     []string       `json:"symbols"`
	Interval    string         `json:"interval"`
	TradingType string         `json:"tradingType"`
	OrderData   *order.Request `json:"orderData"`
}

type proxyHandler func(s *Server, c *gin.Context, req proxyRequest)

var proxyActions = map[string]proxyHandler{
	"get_account":     (*Server).proxyAccount,
	"get_market_data": (*Server).proxyMarketData,
	"get_kline_data":  (*Server).proxyKlines,
	"place_order":     (*Server).proxyPlaceOrder,
	"generate_signal": (*Server).proxyGenerateSignal,
	"execute_signals": (*Server).proxyExecuteSignals,
}

// proxy dispatches one action. Every outcome is HTTP 200 with a success flag;
// failures carry errorKind and errorMessage.
func (s *Server) proxy(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		proxyFail(c, order.KindInvalidRequest, "malformed request body: "+err.Error())
		return
	}
	action := strings.TrimSpace(req.Action)
	handle, ok := proxyActions[action]
	if !ok {
		proxyFail(c, order.KindInvalidRequest, "unknown action: "+action)
		return
	}
	if s.Exchange == nil {
		proxyFail(c, order.KindConfiguration, "exchange client not configured")
		return
	}
	handle(s, c, req)
}

func proxyOK(c *gin.Context, body gin.H) {
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

func proxyFail(c *gin.Context, kind order.ErrorKind, msg string) {
	c.JSON(http.StatusOK, gin.H{
		"success":      false,
		"errorKind":    kind,
		"errorMessage": msg,
	})
}

// proxyFailErr maps an exchange client error onto the proxy error kinds.
// Venue rejections pass through verbatim; transport detail stays in the log.
func (s *Server) proxyFailErr(c *gin.Context, action string, err error) {
	var apiErr *exchange.APIError
	switch {
	case errors.As(err, &apiErr):
		proxyFail(c, order.KindExchangeRejected, apiErr.Message)
	case errors.Is(err, exchange.ErrMissingCredentials):
		proxyFail(c, order.KindConfiguration, "exchange API credentials are not configured")
	case errors.Is(err, exchange.ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.Log.Warn().Err(err).Str("action", action).Msg("exchange call failed")
		proxyFail(c, order.KindTransport, "exchange unreachable or returned an unreadable response")
	default:
		proxyFail(c, order.KindInvalidRequest, err.Error())
	}
}

func parseMarket(v string) (exchange.MarketType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(exchange.MarketSpot):
		return exchange.MarketSpot, nil
	case string(exchange.MarketFutures):
		return exchange.MarketFutures, nil
	default:
		return "", errors.New("tradingType must be spot or futures")
	}
}

func (s *Server) proxyAccount(c *gin.Context, req proxyRequest) {
	m, err := parseMarket(req.TradingType)
	if err != nil {
		proxyFail(c, order.KindInvalidRequest, err.Error())
		return
	}
	if !s.Exchange.HasCredentials() {
		proxyFail(c, order.KindConfiguration, "exchange API credentials are not configured")
		return
	}
	data, err := s.Exchange.Accounts(c.Request.Context(), m)
	if err != nil {
		s.proxyFailErr(c, req.Action, err)
		return
	}
	proxyOK(c, gin.H{"data": data})
}

func (s *Server) proxyMarketData(c *gin.Context, req proxyRequest) {
	ctx := c.Request.Context()
	symbols, err := s.Exchange.Symbols(ctx)
	if err != nil {
		s.proxyFailErr(c, req.Action, err)
		return
	}
	prices, err := s.Exchange.Tickers(ctx)
	if err != nil {
		s.proxyFailErr(c, req.Action, err)
		return
	}
	proxyOK(c, gin.H{"symbols": symbols, "prices": prices})
}

func (s *Server) proxyKlines(c *gin.Context, req proxyRequest) {
	item, m, ok := watchItemFrom(c, req)
	if !ok {
		return
	}
	candles, err := s.Exchange.Candles(c.Request.Context(), item.Symbol, item.Interval, m, time.Time{}, time.Time{})
	if err != nil {
		s.proxyFailErr(c, req.Action, err)
		return
	}
	proxyOK(c, gin.H{"klineData": candles})
}

func (s *Server) proxyPlaceOrder(c *gin.Context, req proxyRequest) {
	if req.OrderData == nil {
		proxyFail(c, order.KindInvalidRequest, "orderData is required")
		return
	}
	if s.Orders == nil {
		proxyFail(c, order.KindConfiguration, "order executor not configured")
		return
	}
	o := *req.OrderData
	if o.Market == "" {
		o.Market = req.TradingType
	}
	res := s.Orders.Place(c.Request.Context(), o)
	c.JSON(http.StatusOK, res)
}

func (s *Server) proxyGenerateSignal(c *gin.Context, req proxyRequest) {
	if s.Scanner == nil {
		proxyFail(c, order.KindConfiguration, "signal scanner not configured")
		return
	}
	item, _, ok := watchItemFrom(c, req)
	if !ok {
		return
	}
	sig, candles, err := s.Scanner.Evaluate(c.Request.Context(), item)
	if err != nil {
		s.proxyFailErr(c, req.Action, err)
		return
	}
	proxyOK(c, gin.H{
		"signal":    sig,
		"aiScore":   strategy.ScoreOpportunity(sig),
		"klineData": tail(candles, klineTail),
	})
}

func (s *Server) proxyExecuteSignals(c *gin.Context, req proxyRequest) {
	if s.Scanner == nil || s.Trader == nil {
		proxyFail(c, order.KindConfiguration, "auto trader not configured")
		return
	}
	if !s.Exchange.HasCredentials() {
		proxyFail(c, order.KindConfiguration, "exchange API credentials are not configured")
		return
	}

	items := s.Watchlist
	if len(req.Symbols) > 0 {
		items = autotrader.Items(req.Symbols, req.Interval)
	}
	if len(items) == 0 {
		proxyFail(c, order.KindInvalidRequest, "no symbols given and the watchlist is empty")
		return
	}

	ctx := c.Request.Context()
	signals := s.Scanner.Scan(ctx, items)
	outcomes, err := s.Trader.ExecuteTop(ctx, signals)
	if errors.Is(err, autotrader.ErrDailyLimitReached) {
		c.JSON(http.StatusOK, gin.H{
			"success":      false,
			"errorKind":    kindDailyLimit,
			"errorMessage": err.Error(),
			"session":      s.Trader.Session.State(time.Now()),
		})
		return
	}
	if err != nil {
		// Cancelled mid-run: report what was already placed.
		s.Log.Warn().Err(err).Int("placed", len(outcomes)).Msg("auto trade run interrupted")
	}
	proxyOK(c, gin.H{
		"scanned":  len(items),
		"signals":  signals,
		"outcomes": outcomes,
		"session":  s.Trader.Session.State(time.Now()),
	})
}

// watchItemFrom validates symbol, interval and tradingType for the candle
// based actions, writing the failure response itself.
func watchItemFrom(c *gin.Context, req proxyRequest) (autotrader.WatchItem, exchange.MarketType, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		proxyFail(c, order.KindInvalidRequest, "symbol is required")
		return autotrader.WatchItem{}, "", false
	}
	m, err := parseMarket(req.TradingType)
	if err != nil {
		proxyFail(c, order.KindInvalidRequest, err.Error())
		return autotrader.WatchItem{}, "", false
	}
	interval := req.Interval
	if interval == "" {
		interval = "1h"
	}
	return autotrader.WatchItem{Symbol: symbol, Interval: interval, Market: string(m)}, m, true
}

func tail(candles []market.Candle, n int) []market.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
