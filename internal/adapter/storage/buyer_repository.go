package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

func (a *SQLAdapter) CreateBuyer(ctx context.Context, b domain.Buyer) error {
	if b.Role == "" {
		b.Role = domain.RoleCustomer
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO buyers (id, username, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Username, b.PasswordHash, b.Role, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", domain.ErrUsernameTaken, b.Username)
	}
	if err != nil {
		return fmt.Errorf("insert buyer: %w", err)
	}

	return nil
}

func (a *SQLAdapter) GetBuyerByUsername(ctx context.Context, username string) (*domain.Buyer, error) {
	var b domain.Buyer
	err := a.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at, updated_at
		FROM buyers WHERE username = ?`, username,
	).Scan(&b.ID, &b.Username, &b.PasswordHash, &b.Role, &b.CreatedAt, &b.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query buyer: %w", err)
	}

	return &b, nil
}

func (a *SQLAdapter) CountBuyers(ctx context.Context) (int, error) {
	return a.count(ctx, "buyers")
}
