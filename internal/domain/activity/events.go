// internal/domain/activity/events.go
package activity

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Constructors below are the only place activity metadata is assembled, so
// each type carries a fixed payload instead of an anything-goes bag.

// DeliveryCompleted credits a rider for a delivered order.
func DeliveryCompleted(riderID int64, orderID string, amount, commission, netEarning, newBalance decimal.Decimal) *Entry {
	return &Entry{
		RiderID:     sql.NullInt64{Int64: riderID, Valid: true},
		Type:        TypeDeliveryCompleted,
		OrderID:     sql.NullString{String: orderID, Valid: true},
		Description: fmt.Sprintf("Delivery completed for order %s, rider earned KES %s", orderID, netEarning.StringFixed(2)),
		Amount:      decimal.NullDecimal{Decimal: amount, Valid: true},
		Commission:  decimal.NullDecimal{Decimal: commission, Valid: true},
		NetEarning:  decimal.NullDecimal{Decimal: netEarning, Valid: true},
		Metadata: map[string]interface{}{
			"new_balance": newBalance.StringFixed(2),
		},
	}
}

// WithdrawalRequested records a rider-initiated withdrawal request. It does
// not move money.
func WithdrawalRequested(riderID, requestID int64, amount, fee, netAmount decimal.Decimal) *Entry {
	return &Entry{
		RiderID:     sql.NullInt64{Int64: riderID, Valid: true},
		Type:        TypeWithdrawalRequested,
		Description: fmt.Sprintf("Withdrawal of KES %s requested (fee KES %s)", amount.StringFixed(2), fee.StringFixed(2)),
		Amount:      decimal.NullDecimal{Decimal: amount, Valid: true},
		Metadata: map[string]interface{}{
			"request_id": requestID,
			"fee":        fee.StringFixed(2),
			"net_amount": netAmount.StringFixed(2),
		},
	}
}

// WithdrawalDecided records an admin decision on a withdrawal request. For
// approvals Amount is set to the debited gross amount so balance replay sees
// the debit; rejections carry no amount.
func WithdrawalDecided(riderID, requestID int64, from, to string, debited *decimal.Decimal) *Entry {
	e := &Entry{
		RiderID:     sql.NullInt64{Int64: riderID, Valid: true},
		Type:        TypeStatusChange,
		Description: fmt.Sprintf("Withdrawal request #%d moved from %s to %s", requestID, from, to),
		Metadata: map[string]interface{}{
			"request_id": requestID,
			"old_status": from,
			"new_status": to,
		},
	}
	if debited != nil {
		e.Amount = decimal.NullDecimal{Decimal: *debited, Valid: true}
		e.Metadata["debited"] = debited.StringFixed(2)
	}
	return e
}

// PaymentReceived records a successful payout to a rider.
func PaymentReceived(riderID int64, reference, transactionID string, amount, newBalance decimal.Decimal) *Entry {
	return &Entry{
		RiderID:     sql.NullInt64{Int64: riderID, Valid: true},
		Type:        TypePaymentReceived,
		Description: fmt.Sprintf("Automated payout of KES %s sent (ref %s)", amount.StringFixed(2), reference),
		Amount:      decimal.NullDecimal{Decimal: amount, Valid: true},
		Metadata: map[string]interface{}{
			"payment_reference": reference,
			"transaction_id":    transactionID,
			"new_balance":       newBalance.StringFixed(2),
		},
	}
}

// SweepSummary records the end-of-sweep totals as a system-scoped entry
// (no rider reference, so per-rider balance replay ignores it).
func SweepSummary(date, trigger string, processed, successful, failed int, totalPaid decimal.Decimal) *Entry {
	return &Entry{
		Type: TypeStatusChange,
		Description: fmt.Sprintf("Daily payout sweep for %s: %d riders processed, %d paid, %d failed, KES %s total",
			date, processed, successful, failed, totalPaid.StringFixed(2)),
		Metadata: map[string]interface{}{
			"event":        "payout_sweep",
			"date":         date,
			"triggered_by": trigger,
			"processed":    processed,
			"successful":   successful,
			"failed":       failed,
			"total_paid":   totalPaid.StringFixed(2),
		},
	}
}
