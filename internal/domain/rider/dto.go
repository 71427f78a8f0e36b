// internal/domain/rider/dto.go
package rider

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditDeliveryRequest struct {
	OrderID      string          `json:"order_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	DeliveryDate time.Time       `json:"delivery_date"`
}

// CreditResult reports the outcome of crediting a completed delivery.
// Duplicate is true when the order had already been credited; in that case
// Earning is the original entry and no balance change happened.
type CreditResult struct {
	Earning    *Earning        `json:"earning"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Duplicate  bool            `json:"duplicate"`
}

type BalanceResponse struct {
	Rider    *Rider    `json:"rider"`
	Earnings []Earning `json:"earnings"`
}

// ReconcileResult compares the stored balance against a balance rebuilt by
// replaying the activity log from an empty state.
type ReconcileResult struct {
	RiderID         int64           `json:"rider_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	TotalCredits    decimal.Decimal `json:"total_credits"`
	TotalDebits     decimal.Decimal `json:"total_debits"`
	EntriesReplayed int             `json:"entries_replayed"`
	Consistent      bool            `json:"consistent"`
}
