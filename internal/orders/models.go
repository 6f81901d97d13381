package orders

import "time"

type Order struct {
	ID            string     `json:"id"`
	Ref           string     `json:"orderId"` // external token, not the storage key
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	ContactNumber string     `json:"contactNumber"`
	TotalCents    int64      `json:"totalAmount"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	OrderDate     time.Time  `json:"orderDate"`
	OrderDoneDate *time.Time `json:"orderDoneDate"`
}

// StatusView is the compact order representation kept in the Redis
// read cache. Every cache writer marshals this one shape, so a cache
// hit and a DB fallback look identical to clients.
type StatusView struct {
	OrderID       string     `json:"orderId"` // external ref
	Status        Status     `json:"status"`
	TotalCents    int64      `json:"totalAmount"`
	OrderDate     time.Time  `json:"orderDate"`
	OrderDoneDate *time.Time `json:"orderDoneDate,omitempty"`
}

func StatusViewOf(o Order) StatusView {
	return StatusView{
		OrderID:       o.Ref,
		Status:        o.Status,
		TotalCents:    o.TotalCents,
		OrderDate:     o.OrderDate,
		OrderDoneDate: o.OrderDoneDate,
	}
}

// LineItem is a transient (product, quantity) pair from the cart. It is
// consumed by placement and never stored as its own row.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderInput struct {
	Name          string
	Address       string
	ContactNumber string
	Items         []LineItem
	TotalCents    int64
}
