package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

// purchaseTx binds the purchase operations to one *sql.Tx. It must never
// touch the pool directly: on SQLite the transaction owns the only
// connection.
type purchaseTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (p *purchaseTx) LockConcert(ctx context.Context, concertID string) (*domain.Concert, error) {
	query := `
		SELECT id, name, artist, price, stock, venue, date, version, created_at, updated_at
		FROM concerts WHERE id = ? ` + p.dialect.lockClause

	var c domain.Concert
	err := p.tx.QueryRowContext(ctx, query, concertID).Scan(
		&c.ID, &c.Name, &c.Artist, &c.Price, &c.Stock, &c.Venue,
		&c.Date, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("lock concert: %w", err))
	}

	return &c, nil
}

func (p *purchaseTx) SumQuantity(ctx context.Context, buyerID, concertID string) (int, error) {
	var sum int
	err := p.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM orders WHERE buyer_id = ? AND concert_id = ?`,
		buyerID, concertID,
	).Scan(&sum)
	if err != nil {
		return 0, classify(fmt.Errorf("sum order quantity: %w", err))
	}

	return sum, nil
}

func (p *purchaseTx) UpdateConcertStock(ctx context.Context, c domain.Concert) error {
	result, err := p.tx.ExecContext(ctx, `
		UPDATE concerts
		SET stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		c.Stock, c.UpdatedAt.UTC(), c.ID, c.Version,
	)
	if err != nil {
		return classify(fmt.Errorf("update concert stock: %w", err))
	}

	return versionChecked(result)
}

// versionChecked reports domain.ErrOptimisticLock when a version-guarded
// update matched no row.
func versionChecked(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("update concert stock: rows affected: %w", err))
	}
	if rows == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

func (p *purchaseTx) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := p.tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, concert_id, quantity, total_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.BuyerID, o.ConcertID, o.Quantity, o.TotalPrice,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

func (p *purchaseTx) CreateAddon(ctx context.Context, a domain.Addon) error {
	_, err := p.tx.ExecContext(ctx, `
		INSERT INTO order_addons (id, order_id, item_name, sort_order)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.OrderID, a.ItemName, a.Position,
	)
	if err != nil {
		return classify(fmt.Errorf("insert order addon: %w", err))
	}
	return nil
}
