// internal/service/fees/calculator.go
package fees

import "github.com/shopspring/decimal"

// Flat withdrawal fee tiers (KES). No percentage component.
var (
	tierThreshold = decimal.NewFromInt(1000)
	lowTierFee    = decimal.NewFromInt(20)
	highTierFee   = decimal.NewFromInt(50)
)

// Breakdown is the fee quote shown to a rider before they commit to a
// withdrawal, so the net amount is never a surprise at approval time.
type Breakdown struct {
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
}

// CalculateFee maps a requested withdrawal amount to its flat fee:
// KES 20 below 1000, KES 50 from 1000 up. Total and deterministic; amount
// validation is the caller's job.
func CalculateFee(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(tierThreshold) {
		return lowTierFee
	}
	return highTierFee
}

// NetAmount returns the amount the rider receives after the fee.
func NetAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Sub(CalculateFee(amount))
}

// Calculate returns the full fee breakdown for an amount.
func Calculate(amount decimal.Decimal) Breakdown {
	fee := CalculateFee(amount)
	b := Breakdown{
		Amount:    amount,
		Fee:       fee,
		NetAmount: amount.Sub(fee),
	}
	if amount.IsPositive() {
		b.FeePercentage = fee.Div(amount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return b
}
