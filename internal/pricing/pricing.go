// Package pricing computes effective prices, totals and checkout quotes for cart lines.
package pricing

import (
	"bookstore/internal/domain/books"
	"bookstore/internal/domain/carts"
)

// EffectivePrice is the discount price when it is set, positive and strictly below the
// original price; otherwise the original price. The result is never negative.
func EffectivePrice(b books.Book) int64 {
	original := max(b.OriginalPrice, 0)
	if d := b.DiscountPrice; d != nil && *d > 0 && *d < original {
		return *d
	}
	return original
}

// HasDiscount reports whether EffectivePrice applies the discount price.
func HasDiscount(b books.Book) bool {
	return EffectivePrice(b) < max(b.OriginalPrice, 0)
}

func LineTotal(l carts.Line) int64 {
	return EffectivePrice(l.Book) * int64(l.Quantity)
}

// Savings is what the discount takes off the line compared to the original price.
func Savings(l carts.Line) int64 {
	return (max(l.Book.OriginalPrice, 0) - EffectivePrice(l.Book)) * int64(l.Quantity)
}

func Total(lines []carts.Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += LineTotal(l)
	}
	return sum
}

// Select returns the cart lines whose book id is in bookIDs, in cart order.
// Ids that are not in the cart are ignored.
func Select(c carts.Cart, bookIDs []int64) []carts.Line {
	want := make(map[int64]struct{}, len(bookIDs))
	for _, id := range bookIDs {
		want[id] = struct{}{}
	}
	var out []carts.Line
	for _, l := range c.Lines {
		if _, ok := want[l.Book.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// SelectedTotal is the total of the selected subset of a cart.
func SelectedTotal(c carts.Cart, bookIDs []int64) int64 {
	return Total(Select(c, bookIDs))
}
