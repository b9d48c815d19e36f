package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// MarketType distinguishes spot vs futures venues.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// SymbolConstraints are the exchange trading rules for one symbol. They are
// fetched per order placement and never cached.
type SymbolConstraints struct {
	Symbol         string  `json:"symbol"`
	MinBaseSize    float64 `json:"minBaseSize"`
	MinFunds       float64 `json:"minFunds"`
	BaseIncrement  float64 `json:"baseIncrement"`
	PriceIncrement float64 `json:"priceIncrement"`
	MaxLeverage    float64 `json:"maxLeverage,omitempty"` // futures only, 0 when unknown
}

// OrderRequest captures an order intent to be sent to an exchange.
type OrderRequest struct {
	ClientID  string
	Symbol    string
	Side      Side
	Type      OrderType
	Market    MarketType
	Size      float64 // base quantity (or contracts on futures); 0 when Funds is used
	Funds     float64 // quote amount for spot market orders
	Price     float64 // required for limit
	StopPrice float64 // optional stop-loss trigger
	Leverage  float64 // futures only
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	ExchangeOrderID string
	ClientID        string
}

// Ticker is the last traded price for a symbol.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}
