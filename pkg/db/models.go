package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

const defaultListLimit = 100

// Order is an exchange-accepted order. Rejected orders are never stored.
type Order struct {
	ExchangeOrderID  string    `json:"orderId"`
	ClientOID        string    `json:"clientOid"`
	Symbol           string    `json:"symbol"`
	Side             string    `json:"side"`
	Type             string    `json:"type"`
	Market           string    `json:"market"`
	Size             float64   `json:"size,omitempty"`
	Funds            float64   `json:"funds,omitempty"`
	Price            float64   `json:"price,omitempty"`
	StopPrice        float64   `json:"stopPrice,omitempty"`
	Leverage         float64   `json:"leverage,omitempty"`
	Status           string    `json:"status"`
	UnverifiedSizing bool      `json:"unverifiedSizing"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Signal is one generated trading signal, kept as a historical record.
type Signal struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"signal_type"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Analysis   string    `json:"analysis"`
	Interval   string    `json:"interval,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateOrder appends an accepted order keyed by its exchange order id.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	if o.ExchangeOrderID == "" {
		return errors.New("create order: exchange order id is empty")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trading_orders (
			exchange_order_id, client_oid, symbol, side, order_type, market,
			size, funds, price, stop_price, leverage, status, unverified_sizing, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ExchangeOrderID, o.ClientOID, o.Symbol, o.Side, o.Type, o.Market,
		o.Size, o.Funds, o.Price, o.StopPrice, o.Leverage, o.Status, o.UnverifiedSizing, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ExchangeOrderID, err)
	}
	return nil
}

const orderColumns = `exchange_order_id, client_oid, symbol, side, order_type, market,
	size, funds, price, stop_price, leverage, status, COALESCE(unverified_sizing, 0), created_at`

func scanOrder(s interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := s.Scan(&o.ExchangeOrderID, &o.ClientOID, &o.Symbol, &o.Side, &o.Type, &o.Market,
		&o.Size, &o.Funds, &o.Price, &o.StopPrice, &o.Leverage, &o.Status, &o.UnverifiedSizing, &o.CreatedAt)
	return o, err
}

// GetOrder fetches one stored order.
func (d *Database) GetOrder(ctx context.Context, exchangeOrderID string) (Order, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM trading_orders WHERE exchange_order_id = ?`, exchangeOrderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders returns the most recent orders first.
func (d *Database) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM trading_orders
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// CreateSignal appends one signal record and returns its id.
func (d *Database) CreateSignal(ctx context.Context, s Signal) (int64, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := d.DB.ExecContext(ctx, insertSignal,
		s.Symbol, s.Direction, s.Confidence, s.Strategy, s.EntryPrice, s.StopLoss, s.TakeProfit, s.Analysis, s.Interval, s.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return res.LastInsertId()
}

// CreateSignals appends a batch of signals in one transaction.
func (d *Database) CreateSignals(ctx context.Context, signals []Signal) error {
	if len(signals) == 0 {
		return nil
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSignal)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range signals {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			s.Symbol, s.Direction, s.Confidence, s.Strategy, s.EntryPrice, s.StopLoss, s.TakeProfit, s.Analysis, s.Interval, s.CreatedAt); err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}
	}
	return tx.Commit()
}

const insertSignal = `
	INSERT INTO trading_signals (
		symbol, signal_type, confidence, strategy, entry_price, stop_loss, take_profit, analysis, interval, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ListSignals returns recent signals, newest first; empty symbol means all.
func (d *Database) ListSignals(ctx context.Context, symbol string, limit int) ([]Signal, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT id, symbol, signal_type, confidence, strategy, entry_price, stop_loss, take_profit,
		       COALESCE(analysis, ''), COALESCE(interval, ''), created_at
		FROM trading_signals`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var res []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Direction, &s.Confidence, &s.Strategy, &s.EntryPrice,
			&s.StopLoss, &s.TakeProfit, &s.Analysis, &s.Interval, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
