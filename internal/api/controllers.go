package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trading-assistant/internal/monitor"
	"trading-assistant/pkg/db"
)

type listOrdersQuery struct {
	Limit int `form:"limit"`
}

func (q *listOrdersQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

type listSignalsQuery struct {
	Symbol string `form:"symbol"`
	Limit  int    `form:"limit"`
}

func (q *listSignalsQuery) normalize() {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
}

// getOrders returns accepted orders, newest first.
func (s *Server) getOrders(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database not configured")
		return
	}
	var q listOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	orders, err := s.DB.ListOrders(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database not configured")
		return
	}
	o, err := s.DB.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "order not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, o)
}

// getSignals returns recorded signals, optionally for one symbol.
func (s *Server) getSignals(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database not configured")
		return
	}
	var q listSignalsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	signals, err := s.DB.ListSignals(c.Request.Context(), q.Symbol, q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, signals)
}

// getSession reports the auto trader's account context and daily usage.
func (s *Server) getSession(c *gin.Context) {
	if s.Trader == nil || s.Trader.Session == nil {
		respondError(c, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "auto trader not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":    s.Trader.Session.State(time.Now()),
		"watchlist":  s.Watchlist,
		"sizingMode": s.Meta.SizingMode,
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getPromMetrics returns a minimal Prometheus text exposition of key metrics.
func (s *Server) getPromMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.String(http.StatusServiceUnavailable, "# metrics not available\n")
		return
	}
	snapshot := s.Metrics.GetSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "assistant_api_requests_total %d\n", snapshot.APIRequests)
	fmt.Fprintf(&b, "assistant_api_errors_total %d\n", snapshot.APIErrors)
	fmt.Fprintf(&b, "assistant_orders_accepted_total %d\n", snapshot.OrdersAccepted)
	fmt.Fprintf(&b, "assistant_orders_rejected_total %d\n", snapshot.OrdersRejected)
	kinds := make([]string, 0, len(snapshot.RejectionsByKind))
	for k := range snapshot.RejectionsByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "assistant_orders_rejected_by_kind{kind=%q} %d\n", k, snapshot.RejectionsByKind[k])
	}
	fmt.Fprintf(&b, "assistant_signals_generated_total %d\n", snapshot.SignalsGenerated)
	fmt.Fprintf(&b, "assistant_errors_total %d\n", snapshot.ErrorsCount)

	writeLatency := func(prefix string, ls monitor.LatencyStats) {
		if ls.Count == 0 {
			return
		}
		fmt.Fprintf(&b, "assistant_%s_latency_ms_avg %f\n", prefix, ls.Avg)
		fmt.Fprintf(&b, "assistant_%s_latency_ms_p50 %f\n", prefix, ls.P50)
		fmt.Fprintf(&b, "assistant_%s_latency_ms_p95 %f\n", prefix, ls.P95)
		fmt.Fprintf(&b, "assistant_%s_latency_ms_p99 %f\n", prefix, ls.P99)
	}
	writeLatency("api", snapshot.APILatency)
	writeLatency("order", snapshot.OrderLatency)
	writeLatency("signal", snapshot.SignalLatency)
	writeLatency("db", snapshot.DBLatency)

	if q := snapshot.ExchangeQuota; q != nil {
		fmt.Fprintf(&b, "assistant_exchange_quota_used %d\n", q.Used)
		fmt.Fprintf(&b, "assistant_exchange_quota_limit %d\n", q.Limit)
	}
	fmt.Fprintf(&b, "assistant_goroutines %d\n", snapshot.GoroutineCount)
	fmt.Fprintf(&b, "assistant_heap_alloc_bytes %d\n", snapshot.HeapAlloc)
	fmt.Fprintf(&b, "assistant_uptime_seconds %f\n", snapshot.UptimeSeconds)

	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(b.String()))
}
