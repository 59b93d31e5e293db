package pricing

import (
	"testing"

	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v int64) *int64 { return &v }

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		original int64
		discount *int64
		want     int64
	}{
		{"no discount", 100_000, nil, 100_000},
		{"valid discount", 100_000, price(80_000), 80_000},
		{"zero discount ignored", 100_000, price(0), 100_000},
		{"negative discount ignored", 100_000, price(-5), 100_000},
		{"discount equal to original ignored", 100_000, price(100_000), 100_000},
		{"discount above original ignored", 100_000, price(120_000), 100_000},
		{"negative original floored", -10, nil, 0},
		{"discount on negative original ignored", -10, price(5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := books.Book{ID: 1, OriginalPrice: tt.original, DiscountPrice: tt.discount}
			assert.Equal(t, tt.want, EffectivePrice(b))
		})
	}
}

func TestUndefinedDiscountMatchesDiscountEqualToOriginal(t *testing.T) {
	a := books.Book{ID: 1, OriginalPrice: 55_000}
	b := books.Book{ID: 1, OriginalPrice: 55_000, DiscountPrice: price(55_000)}
	assert.Equal(t, EffectivePrice(a), EffectivePrice(b))
	assert.False(t, HasDiscount(a))
	assert.False(t, HasDiscount(b))
}

func testCart() carts.Cart {
	return carts.Cart{Lines: []carts.Line{
		{Book: books.Book{ID: 1, Title: "Dế Mèn", OriginalPrice: 100_000, DiscountPrice: price(75_000)}, Quantity: 2},
		{Book: books.Book{ID: 2, Title: "Tắt Đèn", OriginalPrice: 60_000}, Quantity: 1},
		{Book: books.Book{ID: 3, Title: "Số Đỏ", OriginalPrice: 90_000, DiscountPrice: price(95_000)}, Quantity: 3},
	}}
}

func TestTotals(t *testing.T) {
	c := testCart()

	assert.Equal(t, int64(150_000+60_000+270_000), Total(c.Lines))
	assert.Equal(t, int64(150_000+270_000), SelectedTotal(c, []int64{3, 1, 42}))
	assert.Equal(t, int64(0), SelectedTotal(c, nil))
	assert.Equal(t, int64(50_000), Savings(c.Lines[0]))
	assert.Equal(t, int64(0), Savings(c.Lines[2]))
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0₫", FormatVND(0))
	assert.Equal(t, "999₫", FormatVND(999))
	assert.Equal(t, "1.000₫", FormatVND(1000))
	assert.Equal(t, "1.234.567₫", FormatVND(1_234_567))
	assert.Equal(t, "-12.500₫", FormatVND(-12_500))
}

func TestToUSD(t *testing.T) {
	assert.Equal(t, "$4.00", FormatUSD(ToUSD(100_000, 25_000)))
	assert.Equal(t, "$0.05", FormatUSD(ToUSD(1_234, 25_000)))
	assert.Equal(t, "$19.20", FormatUSD(ToUSD(480_000, 0)))
}

func TestNewQuote(t *testing.T) {
	c := testCart()

	q, err := NewQuote(c, []int64{1, 2}, MethodCOD, DefaultUSDRate)
	require.NoError(t, err)
	assert.Equal(t, int64(260_000), q.Subtotal)
	assert.Equal(t, int64(50_000), q.Savings)
	assert.Equal(t, int64(210_000), q.Total)
	assert.Equal(t, "VND", q.Currency)
	assert.Equal(t, "210.000₫", q.Display)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, int64(75_000), q.Lines[0].UnitPrice)

	q, err = NewQuote(c, []int64{1, 2}, MethodPayPal, DefaultUSDRate)
	require.NoError(t, err)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "$8.40", q.Display)

	_, err = NewQuote(c, []int64{42}, MethodQR, DefaultUSDRate)
	assert.ErrorIs(t, err, carts.ErrValidation)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" paypal ")
	require.NoError(t, err)
	assert.Equal(t, MethodPayPal, m)

	_, err = ParseMethod("bitcoin")
	assert.ErrorIs(t, err, carts.ErrValidation)
}
