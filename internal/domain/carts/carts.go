package carts

import "bookstore/internal/domain/books"

// Clone returns a cart that shares no line storage with c.
func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount is the number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) index(bookID int64) int {
	for i, l := range c.Lines {
		if l.Book.ID == bookID {
			return i
		}
	}
	return -1
}

// Find returns the line for bookID.
func (c Cart) Find(bookID int64) (Line, bool) {
	if i := c.index(bookID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Quantity returns the quantity held for bookID, 0 when absent.
func (c Cart) Quantity(bookID int64) int {
	l, _ := c.Find(bookID)
	return l.Quantity
}

// Upsert adds qty units of book, incrementing an existing line or appending a new one.
// The stored book snapshot is refreshed. Non-positive qty is ignored.
func (c *Cart) Upsert(book books.Book, qty int) {
	if qty <= 0 {
		return
	}
	if i := c.index(book.ID); i >= 0 {
		c.Lines[i].Quantity += qty
		c.Lines[i].Book = book
		return
	}
	c.Lines = append(c.Lines, Line{Book: book, Quantity: qty})
}

// Set overwrites the quantity of an existing line. It reports whether the line exists.
// Quantities below 1 are raised to 1.
func (c *Cart) Set(bookID int64, qty int) bool {
	i := c.index(bookID)
	if i < 0 {
		return false
	}
	c.Lines[i].Quantity = max(1, qty)
	return true
}

// Remove deletes the line for bookID. It reports whether a line was removed.
func (c *Cart) Remove(bookID int64) bool {
	i := c.index(bookID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}
