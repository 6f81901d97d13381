package catalog

import "time"

type Availability string

const (
	Available Availability = "Available"
	SoldOut   Availability = "Sold Out"
)

// StatusFor derives availability from on-hand quantity.
func StatusFor(quantity int) Availability {
	if quantity > 0 {
		return Available
	}
	return SoldOut
}

type Product struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	PriceCents  int64        `json:"price"`
	Image       string       `json:"image"` // asset host URL
	Quantity    int          `json:"quantity"`
	Category    string       `json:"category"`
	Status      Availability `json:"status"`
	IsDeleted   bool         `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price"`
	Image       string `json:"image"`
	Quantity    int    `json:"quantity"`
	Category    string `json:"category"`
}
