package domain

import "time"

type Order struct {
	ID         string
	BuyerID    string
	ConcertID  string
	Quantity   int
	TotalPrice int64
	Addons     []Addon
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Addon is a named extra item attached to one order. Position keeps the
// order in which the buyer listed the items.
type Addon struct {
	ID       string
	OrderID  string
	ItemName string
	Position int
}

type OrderHistoryEntry struct {
	Order   Order
	Concert ConcertSnapshot
	Addons  []Addon
}
