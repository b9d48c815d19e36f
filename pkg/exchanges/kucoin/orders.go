package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-assistant/pkg/exchanges/common"
)

// Accounts returns the raw balance payload for the given market.
func (c *Client) Accounts(ctx context.Context, m common.MarketType) (json.RawMessage, error) {
	path := "/api/v1/accounts"
	if m == common.MarketFutures {
		path = "/api/v1/account-overview?currency=USDT"
	}
	var data json.RawMessage
	if err := c.doSigned(ctx, m, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

type orderBody struct {
	ClientOid     string `json:"clientOid"`
	Side          string `json:"side"`
	Symbol        string `json:"symbol"`
	Type          string `json:"type"`
	Size          string `json:"size,omitempty"`
	Funds         string `json:"funds,omitempty"`
	Price         string `json:"price,omitempty"`
	Stop          string `json:"stop,omitempty"`
	StopPrice     string `json:"stopPrice,omitempty"`
	StopPriceType string `json:"stopPriceType,omitempty"`
	Leverage      string `json:"leverage,omitempty"`
}

// SubmitOrder places an order. A non-success response code is returned as
// *common.APIError carrying the exchange's message verbatim.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if req.Symbol == "" || req.Side == "" {
		return common.OrderResult{}, errors.New("kucoin: order symbol and side required")
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	typ := req.Type
	if typ == "" {
		typ = common.OrderTypeMarket
	}

	body := orderBody{
		ClientOid: clientID,
		Side:      string(req.Side),
		Symbol:    req.Symbol,
		Type:      string(typ),
		Size:      formatAmount(req.Size),
		Funds:     formatAmount(req.Funds),
	}
	if typ == common.OrderTypeLimit {
		body.Price = formatAmount(req.Price)
	}
	if req.StopPrice > 0 {
		body.StopPrice = formatAmount(req.StopPrice)
		body.Stop = stopDirection(req.Market, req.Side)
		if req.Market == common.MarketFutures {
			body.StopPriceType = "TP"
		}
	}
	if req.Market == common.MarketFutures {
		lev := req.Leverage
		if lev < 1 {
			lev = 1
		}
		body.Leverage = formatAmount(lev)
	}

	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := c.doSigned(ctx, req.Market, http.MethodPost, "/api/v1/orders", body, &data); err != nil {
		return common.OrderResult{}, err
	}
	return common.OrderResult{ExchangeOrderID: data.OrderID, ClientID: clientID}, nil
}

// stopDirection picks the trigger side of a protective stop: a buy is
// protected below entry, a sell above it.
func stopDirection(m common.MarketType, side common.Side) string {
	sell := side == common.SideSell
	if m == common.MarketFutures {
		if sell {
			return "up"
		}
		return "down"
	}
	if sell {
		return "entry"
	}
	return "loss"
}

func formatAmount(v float64) string {
	if !(v > 0) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}
