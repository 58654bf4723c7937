package port

import (
	"context"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

// UnitOfWork runs fn inside one database transaction. The transaction
// commits when fn returns nil and rolls back on any error, panic or
// context cancellation.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx PurchaseTx) error) error
}

// PurchaseTx is the set of operations available inside a purchase
// transaction. Everything it reads or writes belongs to the same
// transaction.
type PurchaseTx interface {
	// LockConcert loads a concert and holds an exclusive lock on it until
	// the transaction ends. Returns nil, nil when the concert does not exist.
	LockConcert(ctx context.Context, concertID string) (*domain.Concert, error)

	// SumQuantity totals the tickets a buyer already holds for a concert.
	SumQuantity(ctx context.Context, buyerID, concertID string) (int, error)

	// UpdateConcertStock writes the new stock with a version check.
	UpdateConcertStock(ctx context.Context, concert domain.Concert) error

	CreateOrder(ctx context.Context, order domain.Order) error
	CreateAddon(ctx context.Context, addon domain.Addon) error
}

type CatalogRepository interface {
	ListConcerts(ctx context.Context) ([]domain.Concert, error)

	// GetConcert returns nil, nil when the concert does not exist.
	GetConcert(ctx context.Context, concertID string) (*domain.Concert, error)

	CreateConcert(ctx context.Context, concert domain.Concert) error
	CountConcerts(ctx context.Context) (int, error)
}

type OrderHistoryRepository interface {
	// ListOrdersByBuyer returns the buyer's orders, newest first, each with
	// its concert snapshot and add-ons read in one consistent view.
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.OrderHistoryEntry, error)
}

type BuyerRepository interface {
	// CreateBuyer fails with domain.ErrUsernameTaken on a duplicate username.
	CreateBuyer(ctx context.Context, buyer domain.Buyer) error

	// GetBuyerByUsername returns nil, nil when no buyer matches.
	GetBuyerByUsername(ctx context.Context, username string) (*domain.Buyer, error)

	CountBuyers(ctx context.Context) (int, error)
}
