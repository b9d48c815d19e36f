package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-assistant/internal/events"
	"trading-assistant/internal/monitor"
	"trading-assistant/internal/risk"
	"trading-assistant/pkg/db"
	exchange "trading-assistant/pkg/exchanges/common"
)

// DefaultTimeout bounds each outbound exchange call.
const DefaultTimeout = 10 * time.Second

const transportMessage = "exchange unreachable or returned an unreadable response"

// Store appends accepted orders.
type Store interface {
	CreateOrder(ctx context.Context, o db.Order) error
}

// credentialed is implemented by gateways that can tell whether signing is possible.
type credentialed interface {
	HasCredentials() bool
}

// Executor runs one-shot order placements: fetch constraints, size, sign,
// submit, record. It never retries; callers re-invoke for a fresh attempt.
type Executor struct {
	Gateway exchange.Gateway
	Store   Store
	Policy  risk.SizingPolicy
	Bus     *events.Bus
	Metrics *monitor.SystemMetrics
	Timeout time.Duration
	Log     zerolog.Logger
}

func NewExecutor(gw exchange.Gateway, store Store, policy risk.SizingPolicy, bus *events.Bus, log zerolog.Logger) *Executor {
	return &Executor{
		Gateway: gw,
		Store:   store,
		Policy:  policy,
		Bus:     bus,
		Timeout: DefaultTimeout,
		Log:     log,
	}
}

// Place runs the full state machine for req and always returns a Result.
func (e *Executor) Place(ctx context.Context, req Request) Result {
	var latency *monitor.LatencyHistogram
	if e.Metrics != nil {
		latency = e.Metrics.OrderLatency
	}
	timer := monitor.NewTimer(latency)
	defer timer.Stop()

	clientID := uuid.NewString()
	log := e.Log.With().Str("client_oid", clientID).Str("symbol", req.Symbol).Logger()
	res := Result{ClientOID: clientID, Symbol: req.Symbol, State: StateReceived}
	log.Info().Str("state", string(StateReceived)).Msg("order received")

	market, err := normalize(&req)
	if err != nil {
		return e.reject(log, res, KindInvalidRequest, err.Error())
	}
	res.Market = string(market)

	if e.Gateway == nil || e.Policy == nil {
		return e.reject(log, res, KindConfiguration, "order gateway not configured")
	}
	if c, ok := e.Gateway.(credentialed); ok && !c.HasCredentials() {
		return e.reject(log, res, KindConfiguration, exchange.ErrMissingCredentials.Error())
	}

	res.State = StateSizing
	log.Info().Str("state", string(StateSizing)).Msg("fetching symbol constraints")
	var cons *exchange.SymbolConstraints
	callCtx, cancel := context.WithTimeout(ctx, e.timeout())
	c, err := e.Gateway.SymbolConstraints(callCtx, req.Symbol, market)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("constraint lookup failed, using conservative fallback sizing")
	} else {
		cons = &c
	}

	decision, err := e.Policy.Size(risk.SizeInput{
		Size:        req.Size.ptr(),
		Funds:       req.Funds.ptr(),
		Leverage:    req.Leverage.ptr(),
		Market:      market,
		Constraints: cons,
	})
	if err != nil {
		kind := KindInvalidRequest
		if errors.Is(err, risk.ErrBelowMinimum) {
			kind = KindSizingRejected
		}
		return e.reject(log, res, kind, err.Error())
	}
	res.FinalSize = decision.Size
	res.FinalFunds = decision.Funds
	res.MinSize = decision.MinBaseSize
	res.Clamped = decision.Clamped
	res.UnverifiedSizing = decision.Unverified
	if decision.Unverified {
		log.Warn().Float64("min_size", decision.MinBaseSize).Msg("sizing unverified, exchange minimum unknown")
	}

	exReq := exchange.OrderRequest{
		ClientID:  clientID,
		Symbol:    req.Symbol,
		Side:      exchange.Side(req.Side),
		Type:      exchange.OrderType(req.Kind),
		Market:    market,
		Size:      decision.Size,
		Funds:     decision.Funds,
		Price:     req.Price.value(),
		StopPrice: req.StopPrice.value(),
		Leverage:  decision.Leverage,
	}

	res.State = StateSigning
	log.Info().Str("state", string(StateSigning)).
		Float64("size", decision.Size).Float64("funds", decision.Funds).Bool("clamped", decision.Clamped).
		Msg("order sized")

	// The gateway signs immediately before transmission.
	res.State = StateSubmitted
	log.Info().Str("state", string(StateSubmitted)).Msg("submitting order")
	e.Bus.Publish(events.EventOrderSubmitted, res)

	callCtx, cancel = context.WithTimeout(ctx, e.timeout())
	ack, err := e.Gateway.SubmitOrder(callCtx, exReq)
	cancel()
	if err != nil {
		var apiErr *exchange.APIError
		switch {
		case errors.As(err, &apiErr):
			res.ExchangeCode = apiErr.Code
			return e.reject(log, res, KindExchangeRejected, apiErr.Message)
		case errors.Is(err, exchange.ErrMissingCredentials):
			return e.reject(log, res, KindConfiguration, err.Error())
		default:
			log.Error().Err(err).Msg("order transport failed")
			return e.reject(log, res, KindTransport, transportMessage)
		}
	}

	res.Accepted = true
	res.State = StateAccepted
	res.OrderID = ack.ExchangeOrderID
	log.Info().Str("state", string(StateAccepted)).Str("order_id", ack.ExchangeOrderID).Msg("order accepted")

	e.persist(ctx, log, req, res, decision)
	e.Bus.Publish(events.EventOrderAccepted, res)
	return res
}

func (e *Executor) persist(ctx context.Context, log zerolog.Logger, req Request, res Result, d risk.SizeDecision) {
	if e.Store == nil {
		return
	}
	var latency *monitor.LatencyHistogram
	if e.Metrics != nil {
		latency = e.Metrics.DBLatency
	}
	timer := monitor.NewTimer(latency)
	err := e.Store.CreateOrder(context.WithoutCancel(ctx), db.Order{
		ExchangeOrderID:  res.OrderID,
		ClientOID:        res.ClientOID,
		Symbol:           req.Symbol,
		Side:             req.Side,
		Type:             req.Kind,
		Market:           res.Market,
		Size:             d.Size,
		Funds:            d.Funds,
		Price:            req.Price.value(),
		StopPrice:        req.StopPrice.value(),
		Leverage:         d.Leverage,
		Status:           string(StateAccepted),
		UnverifiedSizing: d.Unverified,
	})
	timer.Stop()
	if err != nil {
		// The exchange holds the order; the result stays accepted.
		log.Error().Err(err).Str("order_id", res.OrderID).Msg("failed to record accepted order")
		if e.Metrics != nil {
			e.Metrics.IncrementErrors()
		}
	}
}

func (e *Executor) reject(log zerolog.Logger, res Result, kind ErrorKind, msg string) Result {
	res.Accepted = false
	res.State = StateRejected
	res.ErrorKind = kind
	res.ErrorMessage = msg
	log.Warn().Str("state", string(StateRejected)).Str("kind", string(kind)).Str("reason", msg).Msg("order rejected")
	e.Bus.Publish(events.EventOrderRejected, res)
	return res
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// normalize validates the request shape and canonicalises enum fields.
func normalize(req *Request) (exchange.MarketType, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Side = strings.ToLower(strings.TrimSpace(req.Side))
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))

	if req.Symbol == "" {
		return "", errors.New("symbol is required")
	}
	if req.Side != string(exchange.SideBuy) && req.Side != string(exchange.SideSell) {
		return "", fmt.Errorf("side must be buy or sell, got %q", req.Side)
	}
	for _, f := range []struct {
		name string
		v    *Amount
	}{
		{"size", req.Size}, {"funds", req.Funds}, {"price", req.Price},
		{"stopPrice", req.StopPrice}, {"leverage", req.Leverage},
	} {
		if !f.v.finite() {
			return "", fmt.Errorf("%s must be a finite number", f.name)
		}
	}
	switch req.Kind {
	case string(exchange.OrderTypeMarket):
	case string(exchange.OrderTypeLimit):
		if req.Price.value() <= 0 {
			return "", errors.New("limit orders require a positive price")
		}
	default:
		return "", fmt.Errorf("type must be market or limit, got %q", req.Kind)
	}
	if req.StopPrice.value() < 0 {
		return "", errors.New("stopPrice must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(req.Market)) {
	case "", string(exchange.MarketSpot):
		req.Market = string(exchange.MarketSpot)
		return exchange.MarketSpot, nil
	case string(exchange.MarketFutures):
		req.Market = string(exchange.MarketFutures)
		return exchange.MarketFutures, nil
	default:
		return "", fmt.Errorf("tradingType must be spot or futures, got %q", req.Market)
	}
}
