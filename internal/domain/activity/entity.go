// internal/domain/activity/entity.go
package activity

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDeliveryCompleted   Type = "delivery_completed"
	TypeWithdrawalRequested Type = "withdrawal_requested"
	TypePaymentReceived     Type = "payment_received"
	TypeStatusChange        Type = "status_change"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDeliveryCompleted, TypeWithdrawalRequested, TypePaymentReceived, TypeStatusChange:
		return true
	}
	return false
}

// Entry is one immutable audit record. The log is append-only and is the
// source of truth for reconstructing rider balances: delivery_completed
// entries credit NetEarning, payment_received entries debit Amount, and
// status_change entries debit Amount when it is set (withdrawal approvals).
// withdrawal_requested entries never move money.
type Entry struct {
	ID          int64               `json:"id" db:"id"`
	RiderID     sql.NullInt64       `json:"rider_id,omitempty" db:"rider_id"`
	Type        Type                `json:"type" db:"type"`
	OrderID     sql.NullString      `json:"order_id,omitempty" db:"order_id"`
	Description string              `json:"description" db:"description"`
	Amount      decimal.NullDecimal `json:"amount,omitempty" db:"amount"`
	Commission  decimal.NullDecimal `json:"commission,omitempty" db:"commission"`
	NetEarning  decimal.NullDecimal `json:"net_earning,omitempty" db:"net_earning"`
	Location    sql.NullString      `json:"location,omitempty" db:"location"`

	// Metadata carries the per-type payload built by the constructors in
	// this package; handlers never assemble it by hand.
	Metadata map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

type Stats struct {
	Total           int64            `json:"total"`
	Today           int64            `json:"today"`
	ThisWeek        int64            `json:"this_week"`
	ByType          map[string]int64 `json:"by_type"`
	ActiveRiders7d  int64            `json:"active_riders_7d"`
}

type ListFilters struct {
	RiderID *int64
	Type    Type
	OrderID string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

type ListResponse struct {
	Activities []Entry `json:"activities"`
	Total      int64   `json:"total"`
}

// EarningsReport is the activity-log view of a rider's delivery earnings,
// built purely from delivery_completed entries.
type EarningsReport struct {
	RiderID         int64           `json:"rider_id"`
	Deliveries      int             `json:"deliveries"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalNetEarning decimal.Decimal `json:"total_net_earning"`
	Entries         []Entry         `json:"entries"`
}
