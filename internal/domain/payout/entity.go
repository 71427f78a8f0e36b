// internal/domain/payout/entity.go
package payout

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// AutomatedPayment records one payout attempt made by the daily sweep (or a
// manual trigger). Amount is a snapshot of the rider balance at sweep time.
// The record is terminal as soon as it is created.
type AutomatedPayment struct {
	ID               int64           `json:"id" db:"id"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference"`
	RiderID          int64           `json:"rider_id" db:"rider_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Status           PaymentStatus   `json:"status" db:"status"`
	TransactionID    sql.NullString  `json:"transaction_id,omitempty" db:"transaction_id"`
	FailureReason    sql.NullString  `json:"failure_reason,omitempty" db:"failure_reason"`
	ProcessedAt      time.Time       `json:"processed_at" db:"processed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// SweepSummary aggregates one sweep run.
type SweepSummary struct {
	Date        string          `json:"date"`
	TriggeredBy string          `json:"triggered_by"`
	Processed   int             `json:"processed"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Skipped     bool            `json:"skipped"`
}

type PaymentStats struct {
	TotalPayments int64           `json:"total_payments"`
	Successful    int64           `json:"successful"`
	Failed        int64           `json:"failed"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
}

type SchedulerStatus struct {
	IsRunning         bool          `json:"is_running"`
	NextDailyPayout   *time.Time    `json:"next_daily_payment,omitempty"`
	NextWeeklyCleanup *time.Time    `json:"next_weekly_cleanup,omitempty"`
	Stats             *PaymentStats `json:"stats,omitempty"`
}

type ListFilters struct {
	Status  PaymentStatus
	RiderID *int64
	Limit   int
	Offset  int
}

type ListResponse struct {
	Payments []AutomatedPayment `json:"payments"`
	Total    int64              `json:"total"`
}
