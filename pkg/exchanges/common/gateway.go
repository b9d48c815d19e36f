package common

import "context"

// Gateway abstracts the order side of a trading venue.
type Gateway interface {
	SymbolConstraints(ctx context.Context, symbol string, market MarketType) (SymbolConstraints, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
