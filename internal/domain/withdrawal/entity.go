// internal/domain/withdrawal/entity.go
package withdrawal

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a rider-initiated early withdrawal. Lifecycle: pending, then
// exactly one admin decision (approved or rejected). Approval debits the
// gross requested amount from the rider balance; the rider is paid the net
// amount and the platform keeps the fee.
type Request struct {
	ID            int64           `json:"id" db:"id"`
	RiderID       int64           `json:"rider_id" db:"rider_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	WithdrawalFee decimal.Decimal `json:"withdrawal_fee" db:"withdrawal_fee"`
	NetAmount     decimal.Decimal `json:"net_amount" db:"net_amount"`
	Status        Status          `json:"status" db:"status"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	AdminNotes    sql.NullString  `json:"admin_notes,omitempty" db:"admin_notes"`
	RequestedAt   time.Time       `json:"requested_at" db:"requested_at"`
	ProcessedAt   sql.NullTime    `json:"processed_at,omitempty" db:"processed_at"`
}
