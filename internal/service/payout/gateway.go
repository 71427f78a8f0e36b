// internal/service/payout/gateway.go
package payout

import (
	"context"

	"github.com/shopspring/decimal"
)

// PayResult is the gateway's acknowledgement of an outbound payout.
type PayResult struct {
	TransactionID string
}

// Gateway abstracts the outbound mobile-money payout call so the sweep can
// be driven with a deterministic implementation in tests and the real
// M-Pesa client in production.
type Gateway interface {
	Pay(ctx context.Context, phone string, amount decimal.Decimal) (*PayResult, error)
}
