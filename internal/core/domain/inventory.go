package domain

import "time"

// Concert is a sellable event with a finite ticket stock.
type Concert struct {
	ID        string
	Name      string
	Artist    string
	Price     int64
	Stock     int
	Venue     string
	Date      time.Time
	Version   int // bumped on every stock write
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaleDeadline is the last instant at which tickets for c can be bought.
func (c Concert) SaleDeadline(cutoff time.Duration) time.Time {
	return c.Date.Add(-cutoff)
}

// Snapshot returns the subset of c shown next to an order.
func (c Concert) Snapshot() ConcertSnapshot {
	return ConcertSnapshot{
		ID:     c.ID,
		Name:   c.Name,
		Artist: c.Artist,
		Venue:  c.Venue,
		Date:   c.Date,
		Price:  c.Price,
	}
}

type ConcertSnapshot struct {
	ID     string
	Name   string
	Artist string
	Venue  string
	Date   time.Time
	Price  int64
}
