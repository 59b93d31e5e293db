package pricing

import (
	"strings"

	"bookstore/internal/domain/carts"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodQR     PaymentMethod = "QR"
	MethodPayPal PaymentMethod = "PAYPAL"
)

// ParseMethod accepts method names case-insensitively.
func ParseMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCOD, MethodQR, MethodPayPal:
		return m, nil
	default:
		return "", carts.NewValidationError("unsupported payment method %q", s)
	}
}

type QuoteLine struct {
	BookID    int64  `json:"book_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	ListPrice int64  `json:"list_price"`
	LineTotal int64  `json:"line_total"`
}

// Quote is the checkout summary for a selected subset of the cart. Amounts are dong;
// Amount and Display are in the currency the payment method charges in.
type Quote struct {
	Method   PaymentMethod   `json:"payment_method"`
	Lines    []QuoteLine     `json:"lines"`
	Subtotal int64           `json:"subtotal"`
	Savings  int64           `json:"savings"`
	Total    int64           `json:"total"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Display  string          `json:"display"`
}

// NewQuote prices the selected lines of c for the given payment method. PayPal charges in USD
// converted at usdRate dong per dollar; the other methods charge in dong.
func NewQuote(c carts.Cart, bookIDs []int64, method PaymentMethod, usdRate int64) (Quote, error) {
	selected := Select(c, bookIDs)
	if len(selected) == 0 {
		return Quote{}, carts.NewValidationError("no cart items selected for checkout")
	}

	q := Quote{Method: method, Lines: make([]QuoteLine, 0, len(selected))}
	for _, l := range selected {
		q.Lines = append(q.Lines, QuoteLine{
			BookID:    l.Book.ID,
			Title:     l.Book.Title,
			Quantity:  l.Quantity,
			UnitPrice: EffectivePrice(l.Book),
			ListPrice: max(l.Book.OriginalPrice, 0),
			LineTotal: LineTotal(l),
		})
		q.Subtotal += max(l.Book.OriginalPrice, 0) * int64(l.Quantity)
		q.Savings += Savings(l)
		q.Total += LineTotal(l)
	}

	switch method {
	case MethodPayPal:
		q.Currency = "USD"
		q.Amount = ToUSD(q.Total, usdRate)
		q.Display = FormatUSD(q.Amount)
	case MethodCOD, MethodQR:
		q.Currency = "VND"
		q.Amount = decimal.NewFromInt(q.Total)
		q.Display = FormatVND(q.Total)
	default:
		return Quote{}, carts.NewValidationError("unsupported payment method %q", method)
	}
	return q, nil
}
