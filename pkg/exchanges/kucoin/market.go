package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"trading-assistant/pkg/exchanges/common"
	"trading-assistant/pkg/market"
)

// defaultCandleCount is how many bars Candles fetches when no range is given.
const defaultCandleCount = 100

type interval struct {
	spot    string // spot "type" parameter
	minutes int    // futures "granularity" parameter
}

var intervals = map[string]interval{
	"1m":  {"1min", 1},
	"3m":  {"3min", 3},
	"5m":  {"5min", 5},
	"15m": {"15min", 15},
	"30m": {"30min", 30},
	"1h":  {"1hour", 60},
	"2h":  {"2hour", 120},
	"4h":  {"4hour", 240},
	"6h":  {"6hour", 360},
	"8h":  {"8hour", 480},
	"12h": {"12hour", 720},
	"1d":  {"1day", 1440},
	"1w":  {"1week", 10080},
}

// ParseInterval accepts shorthand ("1h") or KuCoin names ("1hour").
func ParseInterval(name string) (spotType string, d time.Duration, err error) {
	name = strings.TrimSpace(name)
	if iv, ok := intervals[strings.ToLower(name)]; ok {
		return iv.spot, time.Duration(iv.minutes) * time.Minute, nil
	}
	for _, iv := range intervals {
		if strings.EqualFold(iv.spot, name) {
			return iv.spot, time.Duration(iv.minutes) * time.Minute, nil
		}
	}
	return "", 0, fmt.Errorf("unsupported interval %q", name)
}

// Symbols returns the raw spot symbol list.
func (c *Client) Symbols(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.doPublic(ctx, common.MarketSpot, "/api/v1/symbols", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tickers returns symbol -> last traded price for every spot symbol.
func (c *Client) Tickers(ctx context.Context) (map[string]float64, error) {
	var data struct {
		Ticker []struct {
			Symbol string `json:"symbol"`
			Last   string `json:"last"`
		} `json:"ticker"`
	}
	if err := c.doPublic(ctx, common.MarketSpot, "/api/v1/market/allTickers", &data); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(data.Ticker))
	for _, t := range data.Ticker {
		p, err := strconv.ParseFloat(t.Last, 64)
		if err != nil {
			continue
		}
		prices[t.Symbol] = p
	}
	return prices, nil
}

// Candles fetches OHLCV bars in ascending time order. Zero start/end fetch
// the most recent bars.
func (c *Client) Candles(ctx context.Context, symbol, intervalName string, m common.MarketType, start, end time.Time) ([]market.Candle, error) {
	if symbol == "" {
		return nil, errors.New("candles: symbol required")
	}
	spotType, step, err := ParseInterval(intervalName)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-step * defaultCandleCount)
	}

	var candles []market.Candle
	if m == common.MarketFutures {
		candles, err = c.futuresCandles(ctx, symbol, step, start, end)
	} else {
		candles, err = c.spotCandles(ctx, symbol, spotType, step, start, end)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime < candles[j].OpenTime })
	return candles, nil
}

// spot rows: [time(s), open, close, high, low, volume, turnover], newest first.
func (c *Client) spotCandles(ctx context.Context, symbol, spotType string, step time.Duration, start, end time.Time) ([]market.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("type", spotType)
	q.Set("startAt", strconv.FormatInt(start.Unix(), 10))
	q.Set("endAt", strconv.FormatInt(end.Unix(), 10))

	var rows [][]string
	if err := c.doPublic(ctx, common.MarketSpot, "/api/v1/market/candles?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	candles := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		sec, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			continue
		}
		open := sec * 1000
		candles = append(candles, market.Candle{
			OpenTime:  open,
			Open:      toFloat(r[1]),
			Close:     toFloat(r[2]),
			High:      toFloat(r[3]),
			Low:       toFloat(r[4]),
			Volume:    toFloat(r[5]),
			CloseTime: open + step.Milliseconds() - 1,
		})
	}
	return candles, nil
}

// futures rows: [time(ms), open, high, low, close, volume].
func (c *Client) futuresCandles(ctx context.Context, symbol string, step time.Duration, start, end time.Time) ([]market.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("granularity", strconv.Itoa(int(step/time.Minute)))
	q.Set("from", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("to", strconv.FormatInt(end.UnixMilli(), 10))

	var rows [][]float64
	if err := c.doPublic(ctx, common.MarketFutures, "/api/v1/kline/query?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	candles := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		open := int64(r[0])
		candles = append(candles, market.Candle{
			OpenTime:  open,
			Open:      r[1],
			High:      r[2],
			Low:       r[3],
			Close:     r[4],
			Volume:    r[5],
			CloseTime: open + step.Milliseconds() - 1,
		})
	}
	return candles, nil
}

type spotSymbol struct {
	Symbol         string `json:"symbol"`
	BaseMinSize    string `json:"baseMinSize"`
	QuoteMinSize   string `json:"quoteMinSize"`
	BaseIncrement  string `json:"baseIncrement"`
	PriceIncrement string `json:"priceIncrement"`
}

type futuresContract struct {
	Symbol      string  `json:"symbol"`
	LotSize     float64 `json:"lotSize"`
	TickSize    float64 `json:"tickSize"`
	MaxLeverage float64 `json:"maxLeverage"`
}

// SymbolConstraints fetches live trading rules for one symbol. Futures try the
// contract endpoint first and fall back to the active contract list.
func (c *Client) SymbolConstraints(ctx context.Context, symbol string, m common.MarketType) (common.SymbolConstraints, error) {
	if m == common.MarketFutures {
		return c.futuresConstraints(ctx, symbol)
	}

	var symbols []spotSymbol
	if err := c.doPublic(ctx, common.MarketSpot, "/api/v1/symbols", &symbols); err != nil {
		return common.SymbolConstraints{}, err
	}
	for _, s := range symbols {
		if s.Symbol != symbol {
			continue
		}
		return common.SymbolConstraints{
			Symbol:         s.Symbol,
			MinBaseSize:    toFloat(s.BaseMinSize),
			MinFunds:       toFloat(s.QuoteMinSize),
			BaseIncrement:  toFloat(s.BaseIncrement),
			PriceIncrement: toFloat(s.PriceIncrement),
		}, nil
	}
	return common.SymbolConstraints{}, fmt.Errorf("%w: %s", common.ErrSymbolNotFound, symbol)
}

func (c *Client) futuresConstraints(ctx context.Context, symbol string) (common.SymbolConstraints, error) {
	var contract futuresContract
	err := c.doPublic(ctx, common.MarketFutures, "/api/v1/contracts/"+url.PathEscape(symbol), &contract)
	if err == nil && contract.Symbol != "" {
		return contract.constraints(), nil
	}
	if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("contract lookup failed, trying active list")
	}

	var active []futuresContract
	if err := c.doPublic(ctx, common.MarketFutures, "/api/v1/contracts/active", &active); err != nil {
		return common.SymbolConstraints{}, err
	}
	for _, ct := range active {
		if ct.Symbol == symbol {
			return ct.constraints(), nil
		}
	}
	return common.SymbolConstraints{}, fmt.Errorf("%w: %s", common.ErrSymbolNotFound, symbol)
}

func (f futuresContract) constraints() common.SymbolConstraints {
	return common.SymbolConstraints{
		Symbol:         f.Symbol,
		MinBaseSize:    f.LotSize,
		BaseIncrement:  f.LotSize,
		PriceIncrement: f.TickSize,
		MaxLeverage:    f.MaxLeverage,
	}
}

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
