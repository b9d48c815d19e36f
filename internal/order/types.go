package order

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// State is a step of one placement attempt.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateSizing    State = "SIZING"
	StateSigning   State = "SIGNING"
	StateSubmitted State = "SUBMITTED"
	StateAccepted  State = "ACCEPTED"
	StateRejected  State = "REJECTED"
)

// ErrorKind classifies why a placement did not reach ACCEPTED.
type ErrorKind string

const (
	KindConfiguration    ErrorKind = "CONFIGURATION_ERROR"
	KindInvalidRequest   ErrorKind = "INVALID_REQUEST"
	KindExchangeRejected ErrorKind = "EXCHANGE_REJECTED"
	KindTransport        ErrorKind = "TRANSPORT_ERROR"
	KindSizingRejected   ErrorKind = "SIZING_REJECTED"
)

// Amount is a numeric field that also accepts JSON strings ("0.5").
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	*a = Amount(v)
	return nil
}

func (a *Amount) ptr() *float64 {
	if a == nil {
		return nil
	}
	v := float64(*a)
	return &v
}

// finite reports whether a is absent or a real number.
func (a *Amount) finite() bool {
	if a == nil {
		return true
	}
	v := float64(*a)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (a *Amount) value() float64 {
	if a == nil {
		return 0
	}
	return float64(*a)
}

// Request is a caller's order intent. Optional amounts are pointers so that
// "not given" differs from zero.
type Request struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Kind      string  `json:"type"`
	Size      *Amount `json:"size,omitempty"`
	Funds     *Amount `json:"funds,omitempty"`
	Price     *Amount `json:"price,omitempty"`
	StopPrice *Amount `json:"stopPrice,omitempty"`
	Leverage  *Amount `json:"leverage,omitempty"`
	Market    string  `json:"tradingType,omitempty"`
}

// Float is a convenience for building requests in code.
func Float(v float64) *Amount {
	a := Amount(v)
	return &a
}

// Result is the outcome of one placement. It is always returned, never thrown.
type Result struct {
	Accepted         bool      `json:"success"`
	OrderID          string    `json:"orderId,omitempty"`
	ClientOID        string    `json:"clientOid,omitempty"`
	Symbol           string    `json:"symbol,omitempty"`
	Market           string    `json:"tradingType,omitempty"`
	FinalSize        float64   `json:"finalSize,omitempty"`
	FinalFunds       float64   `json:"finalFunds,omitempty"`
	MinSize          float64   `json:"minSize,omitempty"`
	State            State     `json:"state"`
	ErrorKind        ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
	ExchangeCode     string    `json:"exchangeCode,omitempty"`
	UnverifiedSizing bool      `json:"unverifiedSizing,omitempty"`
	Clamped          bool      `json:"clamped,omitempty"`
}

// RejectionKind lets monitors bucket rejections.
func (r Result) RejectionKind() string { return string(r.ErrorKind) }

// String renders a one-line summary for logs.
func (r Result) String() string {
	if r.Accepted {
		return fmt.Sprintf("%s accepted order=%s size=%v funds=%v", r.Symbol, r.OrderID, r.FinalSize, r.FinalFunds)
	}
	return fmt.Sprintf("%s rejected %s: %s", r.Symbol, r.ErrorKind, r.ErrorMessage)
}
