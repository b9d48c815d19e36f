package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"trading-assistant/pkg/exchanges/common"
)

// FallbackMinBaseSize is used when the exchange minimum cannot be determined.
const FallbackMinBaseSize = 1.0

var (
	ErrBelowMinimum       = errors.New("risk: requested amount below exchange minimum")
	ErrLeverageOutOfRange = errors.New("risk: leverage out of range")
	ErrFundsNotSupported  = errors.New("risk: funds-based sizing is only available on spot")
	ErrNonFiniteAmount    = errors.New("risk: amount must be a finite number")
)

// SizeInput is everything a sizing policy looks at. Optional amounts are
// pointers so that "not given" differs from zero. Constraints is nil when the
// exchange lookup failed.
type SizeInput struct {
	Size        *float64
	Funds       *float64
	Leverage    *float64
	Market      common.MarketType
	Constraints *common.SymbolConstraints
}

// SizeDecision is the amount to submit. Exactly one of Size and Funds is set.
type SizeDecision struct {
	Size        float64 `json:"size,omitempty"`
	Funds       float64 `json:"funds,omitempty"`
	Leverage    float64 `json:"leverage,omitempty"`
	MinBaseSize float64 `json:"minBaseSize"`
	Clamped     bool    `json:"clamped"`
	Unverified  bool    `json:"unverified"`
}

// SizingPolicy turns a requested amount into one the exchange will accept.
type SizingPolicy interface {
	Name() string
	Size(in SizeInput) (SizeDecision, error)
}

// ClampPolicy raises under-minimum requests to the exchange minimum.
type ClampPolicy struct{}

func (ClampPolicy) Name() string { return "clamp" }

func (ClampPolicy) Size(in SizeInput) (SizeDecision, error) { return computeSize(in, true) }

// RejectPolicy refuses under-minimum requests instead of enlarging them.
type RejectPolicy struct{}

func (RejectPolicy) Name() string { return "reject" }

func (RejectPolicy) Size(in SizeInput) (SizeDecision, error) { return computeSize(in, false) }

// NewPolicy selects a policy by name; empty means clamp.
func NewPolicy(mode string) (SizingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "clamp":
		return ClampPolicy{}, nil
	case "reject":
		return RejectPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown sizing mode %q", mode)
	}
}

func computeSize(in SizeInput, clamp bool) (SizeDecision, error) {
	for _, p := range []*float64{in.Size, in.Funds, in.Leverage} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return SizeDecision{}, fmt.Errorf("%w: %v", ErrNonFiniteAmount, *p)
		}
	}
	var cons common.SymbolConstraints
	if in.Constraints != nil {
		cons = *in.Constraints
	}
	dec := SizeDecision{MinBaseSize: cons.MinBaseSize}
	if cons.MinBaseSize <= 0 || math.IsNaN(cons.MinBaseSize) {
		dec.MinBaseSize = FallbackMinBaseSize
		dec.Unverified = true
	}

	futures := in.Market == common.MarketFutures
	if futures && in.Leverage != nil {
		lev := *in.Leverage
		if math.IsNaN(lev) || lev < 1 {
			return SizeDecision{}, fmt.Errorf("%w: %v must be at least 1", ErrLeverageOutOfRange, lev)
		}
		if cons.MaxLeverage > 0 && lev > cons.MaxLeverage {
			return SizeDecision{}, fmt.Errorf("%w: %v exceeds exchange maximum %v", ErrLeverageOutOfRange, lev, cons.MaxLeverage)
		}
		dec.Leverage = lev
	}

	if in.Funds != nil && *in.Funds != 0 && in.Size == nil {
		if futures {
			return SizeDecision{}, ErrFundsNotSupported
		}
		funds := *in.Funds
		if math.IsNaN(funds) || funds < cons.MinFunds || funds < 0 {
			if !clamp {
				return SizeDecision{}, fmt.Errorf("%w: funds %v < %v", ErrBelowMinimum, funds, cons.MinFunds)
			}
			funds = cons.MinFunds
			dec.Clamped = true
		}
		if funds > 0 {
			dec.Funds = funds
			return dec, nil
		}
		// No usable funds minimum: fall through to size-based sizing.
	}

	size := dec.MinBaseSize
	if in.Size != nil && *in.Size != 0 {
		size = *in.Size
		if math.IsNaN(size) || size < dec.MinBaseSize {
			if !clamp {
				return SizeDecision{}, fmt.Errorf("%w: size %v < %v", ErrBelowMinimum, size, dec.MinBaseSize)
			}
			size = dec.MinBaseSize
			dec.Clamped = true
		}
	}
	if dec.Leverage > 0 {
		size = math.Max(size, dec.MinBaseSize*dec.Leverage)
	}

	dec.Size = roundUp(size, cons.BaseIncrement)
	return dec, nil
}

// roundUp rounds v up to a multiple of step so it never drops below a minimum.
func roundUp(v, step float64) float64 {
	if step <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Ceil().Mul(s).Float64()
	return out
}

// PositionSize sizes a trade so that hitting the stop loses riskPct of
// balance, capped so the notional stays within maxRatio of balance.
func PositionSize(balance, riskPct, maxRatio, entry, stop float64) float64 {
	dist := math.Abs(entry - stop)
	if balance <= 0 || riskPct <= 0 || entry <= 0 || dist == 0 {
		return 0
	}
	size := balance * riskPct / dist
	if maxRatio > 0 {
		size = math.Min(size, balance*maxRatio/entry)
	}
	return size
}
