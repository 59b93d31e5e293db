package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultUSDRate is the number of dong per US dollar used when converting for PayPal.
const DefaultUSDRate = 25000

// FormatVND renders whole dong with vi-VN grouping, e.g. 1234567 -> "1.234.567₫".
func FormatVND(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	b.WriteString("₫")
	return b.String()
}

// ToUSD converts dong to dollars rounded to cents. A non-positive rate falls back to DefaultUSDRate.
func ToUSD(amountVND int64, rate int64) decimal.Decimal {
	if rate <= 0 {
		rate = DefaultUSDRate
	}
	return decimal.NewFromInt(amountVND).Div(decimal.NewFromInt(rate)).Round(2)
}

func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
