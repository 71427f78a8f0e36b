// internal/domain/rider/entity.go
package rider

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

type EarningStatus string

const (
	// EarningPending means the earning is still part of the rider's
	// current balance.
	EarningPending EarningStatus = "pending"
	// EarningPaid means the balance containing this earning has been
	// swept to zero by an automated payout.
	EarningPaid EarningStatus = "paid"
)

// Rider is the balance record for a delivery rider. Balance fields are only
// ever mutated by the earnings ledger; current_balance always equals
// total_earnings - total_withdrawn.
type Rider struct {
	ID       int64  `json:"id" db:"id"`
	FullName string `json:"full_name" db:"full_name"`
	Phone    string `json:"phone" db:"phone"`
	Status   Status `json:"status" db:"status"`
	IsActive bool   `json:"is_active" db:"is_active"`

	// Balance fields (KES, 2dp)
	CurrentBalance  decimal.Decimal `json:"current_balance" db:"current_balance"`
	TotalEarnings   decimal.Decimal `json:"total_earnings" db:"total_earnings"`
	TotalWithdrawn  decimal.Decimal `json:"total_withdrawn" db:"total_withdrawn"`
	TotalDeliveries int             `json:"total_deliveries" db:"total_deliveries"`
	LastWithdrawal  sql.NullTime    `json:"last_withdrawal,omitempty" db:"last_withdrawal"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Earning is one immutable ledger entry per delivered order. The
// (rider_id, order_id) pair is unique, which is what makes delivery
// crediting idempotent.
type Earning struct {
	ID           int64           `json:"id" db:"id"`
	RiderID      int64           `json:"rider_id" db:"rider_id"`
	OrderID      string          `json:"order_id" db:"order_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Commission   decimal.Decimal `json:"commission" db:"commission"`
	RiderEarning decimal.Decimal `json:"rider_earning" db:"rider_earning"`
	DeliveryDate time.Time       `json:"delivery_date" db:"delivery_date"`
	Status       EarningStatus   `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
