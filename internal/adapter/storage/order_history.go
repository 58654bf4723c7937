package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

// ListOrdersByBuyer reads orders and add-ons inside one read-only
// transaction so a concurrent purchase is seen either whole or not at all.
func (a *SQLAdapter) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.OrderHistoryEntry, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	entries, err := queryOrderEntries(ctx, tx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	addons, err := queryBuyerAddons(ctx, tx, buyerID)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		list := addons[entries[i].Order.ID]
		if list == nil {
			list = []domain.Addon{}
		}
		entries[i].Addons = list
		entries[i].Order.Addons = list
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit read tx: %w", err)
	}

	return entries, nil
}

func queryOrderEntries(ctx context.Context, tx *sql.Tx, buyerID string) ([]domain.OrderHistoryEntry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT o.id, o.buyer_id, o.concert_id, o.quantity, o.total_price, o.created_at, o.updated_at,
			c.id, c.name, c.artist, c.venue, c.date, c.price
		FROM orders o
		JOIN concerts c ON c.id = o.concert_id
		WHERE o.buyer_id = ?
		ORDER BY o.created_at DESC, o.id DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.OrderHistoryEntry, 0)
	for rows.Next() {
		var (
			e domain.OrderHistoryEntry
			c domain.Concert
		)
		if err := rows.Scan(
			&e.Order.ID, &e.Order.BuyerID, &e.Order.ConcertID, &e.Order.Quantity, &e.Order.TotalPrice,
			&e.Order.CreatedAt, &e.Order.UpdatedAt,
			&c.ID, &c.Name, &c.Artist, &c.Venue, &c.Date, &c.Price,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		e.Concert = c.Snapshot()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return entries, nil
}

func queryBuyerAddons(ctx context.Context, tx *sql.Tx, buyerID string) (map[string][]domain.Addon, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.id, a.order_id, a.item_name, a.sort_order
		FROM order_addons a
		JOIN orders o ON o.id = a.order_id
		WHERE o.buyer_id = ?
		ORDER BY a.order_id, a.sort_order`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query order addons: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.Addon)
	for rows.Next() {
		var a domain.Addon
		if err := rows.Scan(&a.ID, &a.OrderID, &a.ItemName, &a.Position); err != nil {
			return nil, fmt.Errorf("scan order addon: %w", err)
		}
		byOrder[a.OrderID] = append(byOrder[a.OrderID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order addons: %w", err)
	}

	return byOrder, nil
}
