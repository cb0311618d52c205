package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the fixed-point scale for all balances and amounts.
const MicrosPerUnit = 1_000_000

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64  // micros
	Currency string // e.g. BTC, ETH, USDT
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(MicrosPerUnit))
}

// FromDecimal converts a decimal.Decimal to int64 micros.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(MicrosPerUnit)).IntPart()
}

// UnitsToMicros converts a whole-unit amount (e.g. a configured minimum
// expressed as "10 USDT") into micros.
func UnitsToMicros(units int64) int64 {
	return units * MicrosPerUnit
}

// ProfitMicros computes the fixed return on an invested amount:
// amount * roi / 100, rounded down to whole micros. The result is
// persisted on the investment at creation time so that later plan edits
// cannot drift the payout.
func ProfitMicros(amountMicros int64, roiPercent decimal.Decimal) int64 {
	profit := decimal.NewFromInt(amountMicros).
		Mul(roiPercent).
		Div(decimal.NewFromInt(100))
	return profit.IntPart()
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
