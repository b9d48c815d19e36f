package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-assistant/pkg/exchanges/common"
)

type fakeExchange struct {
	t          *testing.T
	symbolHits atomic.Int32
	secret     string
	lastBody   []byte
	lastPath   string
	orderRes   string
}

func newFakeExchange(t *testing.T) (*fakeExchange, *httptest.Server) {
	f := &fakeExchange{t: t, secret: "secret", orderRes: `{"code":"200000","data":{"orderId":"ord-1"}}`}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timestamp", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"200000","data":1700000000000}`)
	})
	mux.HandleFunc("/api/v1/symbols", func(w http.ResponseWriter, r *http.Request) {
		f.symbolHits.Add(1)
		w.Header().Set("gw-ratelimit-limit", "2000")
		w.Header().Set("gw-ratelimit-remaining", "1500")
		w.Header().Set("gw-ratelimit-reset", "30000")
		io.WriteString(w, `{"code":"200000","data":[
			{"symbol":"BTC-USDT","baseMinSize":"0.00001","quoteMinSize":"0.1","baseIncrement":"0.00000001","priceIncrement":"0.1"},
			{"symbol":"ETH-USDT","baseMinSize":"0.0001","quoteMinSize":"0.1","baseIncrement":"0.0000001","priceIncrement":"0.01"}]}`)
	})
	mux.HandleFunc("/api/v1/market/allTickers", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"200000","data":{"time":1,"ticker":[
			{"symbol":"BTC-USDT","last":"65000.5"},{"symbol":"DEAD-USDT","last":null}]}}`)
	})
	mux.HandleFunc("/api/v1/market/candles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1hour", r.URL.Query().Get("type"))
		io.WriteString(w, `{"code":"200000","data":[
			["1700007200","12","13","14","11","100","1300"],
			["1700003600","11","12","13","10","100","1200"],
			["1700000000","10","11","12","9","100","1100"]]}`)
	})
	mux.HandleFunc("/api/v1/contracts/XBTUSDTM", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"200000","data":{"symbol":"XBTUSDTM","lotSize":1,"tickSize":0.1,"maxLeverage":100}}`)
	})
	mux.HandleFunc("/api/v1/contracts/ETHUSDTM", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"code":"404000","msg":"Not Found"}`)
	})
	mux.HandleFunc("/api/v1/contracts/active", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":"200000","data":[{"symbol":"ETHUSDTM","lotSize":1,"tickSize":0.05,"maxLeverage":75}]}`)
	})
	mux.HandleFunc("/api/v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		f.verify(r, "")
		io.WriteString(w, `{"code":"200000","data":[{"currency":"USDT","balance":"100"}]}`)
	})
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.lastBody = body
		f.verify(r, string(body))
		io.WriteString(w, f.orderRes)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeExchange) verify(r *http.Request, body string) {
	ts := r.Header.Get("KC-API-TIMESTAMP")
	want := Sign(f.secret, ts, r.Method, r.URL.RequestURI(), body)
	assert.Equal(f.t, want, r.Header.Get("KC-API-SIGN"), "signature over %s", r.URL.RequestURI())
	assert.Equal(f.t, SignPassphrase(f.secret, "pass"), r.Header.Get("KC-API-PASSPHRASE"))
	assert.Equal(f.t, "key", r.Header.Get("KC-API-KEY"))
}

func newTestClient(srv *httptest.Server, withCreds bool) *Client {
	cfg := Config{SpotBaseURL: srv.URL, FuturesBaseURL: srv.URL, KeyVersion: 2, Timeout: 2 * time.Second}
	if withCreds {
		cfg.APIKey, cfg.APISecret, cfg.APIPassphrase = "key", "secret", "pass"
	}
	return New(cfg, zerolog.Nop())
}

func TestServerTime(t *testing.T) {
	_, srv := newFakeExchange(t)
	ts, err := newTestClient(srv, false).ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), ts)
}

func TestSymbolsAndTickers(t *testing.T) {
	_, srv := newFakeExchange(t)
	c := newTestClient(srv, false)

	symbols, err := c.Symbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, symbols, 2)

	used, limit, _ := c.RateLimitUsage()
	assert.Equal(t, 500, used)
	assert.Equal(t, 2000, limit)

	prices, err := c.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC-USDT": 65000.5}, prices)
}

func TestCandlesAscending(t *testing.T) {
	_, srv := newFakeExchange(t)
	candles, err := newTestClient(srv, false).Candles(context.Background(), "BTC-USDT", "1h", common.MarketSpot, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
	assert.Equal(t, int64(1700003600000-1), candles[0].CloseTime)
	assert.Equal(t, 10.0, candles[0].Open)
	assert.Equal(t, 11.0, candles[0].Close)
	assert.Equal(t, 12.0, candles[0].High)
	assert.Equal(t, 9.0, candles[0].Low)
	assert.Equal(t, 13.0, candles[2].Close)
}

func TestCandlesRejectsUnknownInterval(t *testing.T) {
	_, srv := newFakeExchange(t)
	_, err := newTestClient(srv, false).Candles(context.Background(), "BTC-USDT", "7m", common.MarketSpot, time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	typ, d, err := ParseInterval("4h")
	require.NoError(t, err)
	assert.Equal(t, "4hour", typ)
	assert.Equal(t, 4*time.Hour, d)

	typ, d, err = ParseInterval("1day")
	require.NoError(t, err)
	assert.Equal(t, "1day", typ)
	assert.Equal(t, 24*time.Hour, d)
}

func TestSymbolConstraints(t *testing.T) {
	f, srv := newFakeExchange(t)
	c := newTestClient(srv, false)
	ctx := context.Background()

	spot, err := c.SymbolConstraints(ctx, "ETH-USDT", common.MarketSpot)
	require.NoError(t, err)
	assert.Equal(t, 0.0001, spot.MinBaseSize)
	assert.Equal(t, 0.1, spot.MinFunds)
	assert.Equal(t, 0.0000001, spot.BaseIncrement)

	_, err = c.SymbolConstraints(ctx, "NOPE-USDT", common.MarketSpot)
	assert.ErrorIs(t, err, common.ErrSymbolNotFound)

	fut, err := c.SymbolConstraints(ctx, "XBTUSDTM", common.MarketFutures)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fut.MinBaseSize)
	assert.Equal(t, 100.0, fut.MaxLeverage)

	fallback, err := c.SymbolConstraints(ctx, "ETHUSDTM", common.MarketFutures)
	require.NoError(t, err)
	assert.Equal(t, 75.0, fallback.MaxLeverage)

	// Rules are fetched per lookup, never reused.
	assert.Equal(t, int32(2), f.symbolHits.Load())
}

func TestAccountsSigned(t *testing.T) {
	_, srv := newFakeExchange(t)
	data, err := newTestClient(srv, true).Accounts(context.Background(), common.MarketSpot)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"currency":"USDT","balance":"100"}]`, string(data))
}

func TestSignedCallsRequireCredentials(t *testing.T) {
	_, srv := newFakeExchange(t)
	c := newTestClient(srv, false)

	_, err := c.Accounts(context.Background(), common.MarketSpot)
	assert.ErrorIs(t, err, common.ErrMissingCredentials)

	_, err = c.SubmitOrder(context.Background(), common.OrderRequest{Symbol: "BTC-USDT", Side: common.SideBuy, Size: 1})
	assert.ErrorIs(t, err, common.ErrMissingCredentials)
}

func TestSubmitOrderBody(t *testing.T) {
	f, srv := newFakeExchange(t)
	res, err := newTestClient(srv, true).SubmitOrder(context.Background(), common.OrderRequest{
		ClientID:  "cid-1",
		Symbol:    "XBTUSDTM",
		Side:      common.SideBuy,
		Type:      common.OrderTypeMarket,
		Market:    common.MarketFutures,
		Size:      3,
		StopPrice: 60000,
		Leverage:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.ExchangeOrderID)
	assert.Equal(t, "cid-1", res.ClientID)

	var body map[string]string
	require.NoError(t, json.Unmarshal(f.lastBody, &body))
	assert.Equal(t, map[string]string{
		"clientOid":     "cid-1",
		"side":          "buy",
		"symbol":        "XBTUSDTM",
		"type":          "market",
		"size":          "3",
		"stop":          "down",
		"stopPrice":     "60000",
		"stopPriceType": "TP",
		"leverage":      "5",
	}, body)
}

func TestSubmitOrderStopDirectionFollowsSide(t *testing.T) {
	cases := []struct {
		market common.MarketType
		side   common.Side
		symbol string
		stop   string
	}{
		{common.MarketSpot, common.SideBuy, "BTC-USDT", "loss"},
		{common.MarketSpot, common.SideSell, "BTC-USDT", "entry"},
		{common.MarketFutures, common.SideBuy, "XBTUSDTM", "down"},
		{common.MarketFutures, common.SideSell, "XBTUSDTM", "up"},
	}
	for _, tc := range cases {
		t.Run(string(tc.market)+"/"+string(tc.side), func(t *testing.T) {
			f, srv := newFakeExchange(t)
			_, err := newTestClient(srv, true).SubmitOrder(context.Background(), common.OrderRequest{
				Symbol:    tc.symbol,
				Side:      tc.side,
				Type:      common.OrderTypeMarket,
				Market:    tc.market,
				Size:      1,
				StopPrice: 102,
			})
			require.NoError(t, err)

			var body map[string]string
			require.NoError(t, json.Unmarshal(f.lastBody, &body))
			assert.Equal(t, tc.stop, body["stop"])
			assert.Equal(t, "102", body["stopPrice"])
		})
	}
}

func TestFormatAmountSkipsNonFinite(t *testing.T) {
	assert.Equal(t, "", formatAmount(math.NaN()))
	assert.Equal(t, "", formatAmount(math.Inf(1)))
	assert.Equal(t, "", formatAmount(-2))
	assert.Equal(t, "0.25", formatAmount(0.25))
}

func TestSubmitOrderExchangeRejection(t *testing.T) {
	f, srv := newFakeExchange(t)
	f.orderRes = `{"code":"400100","msg":"Balance insufficient!"}`

	_, err := newTestClient(srv, true).SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: "BTC-USDT", Side: common.SideSell, Funds: 10,
	})
	var apiErr *common.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "400100", apiErr.Code)
	assert.Equal(t, "Balance insufficient!", apiErr.Message)
}

func TestNonJSONIsTransportError(t *testing.T) {
	f, srv := newFakeExchange(t)
	f.orderRes = `<html>bad gateway</html>`

	_, err := newTestClient(srv, true).SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: "BTC-USDT", Side: common.SideBuy, Size: 1,
	})
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestUnreachableIsTransportError(t *testing.T) {
	c := New(Config{SpotBaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zerolog.Nop())
	_, err := c.Tickers(context.Background())
	assert.ErrorIs(t, err, common.ErrTransport)
}
