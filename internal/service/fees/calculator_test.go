// internal/service/fees/calculator_test.go
package fees

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"small amount", "100", "20"},
		{"just below threshold", "999", "20"},
		{"fractionally below threshold", "999.99", "20"},
		{"exactly at threshold", "1000", "50"},
		{"above threshold", "5000", "50"},
		{"large amount", "100000", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			want := decimal.RequireFromString(tt.want)
			if got := CalculateFee(amount); !got.Equal(want) {
				t.Errorf("CalculateFee(%s) = %s, want %s", tt.amount, got, tt.want)
			}
		})
	}
}

func TestNetAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"999", "979"},
		{"1000", "950"},
		{"500", "480"},
	}

	for _, tt := range tests {
		amount := decimal.RequireFromString(tt.amount)
		want := decimal.RequireFromString(tt.want)
		if got := NetAmount(amount); !got.Equal(want) {
			t.Errorf("NetAmount(%s) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestCalculateBreakdown(t *testing.T) {
	b := Calculate(decimal.RequireFromString("1000"))

	if !b.Fee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Fee = %s, want 50", b.Fee)
	}
	if !b.NetAmount.Equal(decimal.NewFromInt(950)) {
		t.Errorf("NetAmount = %s, want 950", b.NetAmount)
	}
	if !b.FeePercentage.Equal(decimal.NewFromInt(5)) {
		t.Errorf("FeePercentage = %s, want 5", b.FeePercentage)
	}

	// Fee and net always add back to the requested amount.
	if !b.Fee.Add(b.NetAmount).Equal(b.Amount) {
		t.Errorf("Fee + NetAmount = %s, want %s", b.Fee.Add(b.NetAmount), b.Amount)
	}
}

func TestCalculateFeePercentageRounding(t *testing.T) {
	b := Calculate(decimal.RequireFromString("150"))

	// 20 / 150 * 100 = 13.333... rounds to 13.33
	want := decimal.RequireFromString("13.33")
	if !b.FeePercentage.Equal(want) {
		t.Errorf("FeePercentage = %s, want %s", b.FeePercentage, want)
	}
}
