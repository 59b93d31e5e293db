package books

// Book is the catalog snapshot the cart works with. Prices are whole dong.
type Book struct {
	ID            int64    `json:"id" validate:"gt=0"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Publisher     string   `json:"publisher,omitempty"`
	Category      string   `json:"category,omitempty"`
	OriginalPrice int64    `json:"originalPrice" validate:"gte=0"`
	DiscountPrice *int64   `json:"discountPrice,omitempty"`
	Stock         int      `json:"stock" validate:"gte=0"`
	Sold          int      `json:"sold"`
	CoverImages   []string `json:"coverImages,omitempty"`
	IsDeleted     bool     `json:"isDeleted,omitempty"`
}

// Available is stock - sold. It can be negative when the backend oversold.
func (b Book) Available() int {
	return b.Stock - b.Sold
}
