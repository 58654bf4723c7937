package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

var (
	//go:embed schema/mysql.sql
	mysqlSchema string

	//go:embed schema/sqlite.sql
	sqliteSchema string
)

// Dialect captures what differs between the supported SQL backends.
type Dialect struct {
	Name string

	// lockClause is appended to the concert lookup inside a purchase.
	// SQLite has no row locks; its single writer connection serializes
	// transactions instead.
	lockClause string
	schema     string
}

var (
	MySQL  = Dialect{Name: "mysql", lockClause: "FOR UPDATE", schema: mysqlSchema}
	SQLite = Dialect{Name: "sqlite3", schema: sqliteSchema}
)

// SQLAdapter implements the repository ports on top of database/sql.
type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ port.UnitOfWork             = (*SQLAdapter)(nil)
	_ port.CatalogRepository      = (*SQLAdapter)(nil)
	_ port.OrderHistoryRepository = (*SQLAdapter)(nil)
	_ port.BuyerRepository        = (*SQLAdapter)(nil)
)

func NewSQLAdapter(db *sql.DB, dialect Dialect) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: dialect}
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return NewSQLAdapter(db, MySQL)
}

func NewSQLiteAdapter(db *sql.DB) *SQLAdapter {
	return NewSQLAdapter(db, SQLite)
}

// Migrate creates the tables if they do not exist yet. Safe to run on
// every start.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(a.dialect.schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", a.dialect.Name, err)
		}
	}
	return nil
}

func (a *SQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.PurchaseTx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &purchaseTx{tx: tx, dialect: a.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (a *SQLAdapter) ListConcerts(ctx context.Context) ([]domain.Concert, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, artist, price, stock, venue, date, version, created_at, updated_at
		FROM concerts
		ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query concerts: %w", err)
	}
	defer rows.Close()

	concerts := make([]domain.Concert, 0)
	for rows.Next() {
		var c domain.Concert
		if err := rows.Scan(&c.ID, &c.Name, &c.Artist, &c.Price, &c.Stock, &c.Venue,
			&c.Date, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concert: %w", err)
		}
		concerts = append(concerts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate concerts: %w", err)
	}

	return concerts, nil
}

func (a *SQLAdapter) GetConcert(ctx context.Context, concertID string) (*domain.Concert, error) {
	var c domain.Concert
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, artist, price, stock, venue, date, version, created_at, updated_at
		FROM concerts WHERE id = ?`, concertID,
	).Scan(&c.ID, &c.Name, &c.Artist, &c.Price, &c.Stock, &c.Venue,
		&c.Date, &c.Version, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query concert: %w", err)
	}

	return &c, nil
}

func (a *SQLAdapter) CreateConcert(ctx context.Context, c domain.Concert) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO concerts (id, name, artist, price, stock, venue, date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Artist, c.Price, c.Stock, c.Venue,
		c.Date.UTC(), c.Version, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert concert: %w", err)
	}
	return nil
}

func (a *SQLAdapter) CountConcerts(ctx context.Context) (int, error) {
	return a.count(ctx, "concerts")
}

func (a *SQLAdapter) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// classify maps driver errors that signal lock contention onto
// domain.ErrConflict so the caller knows a retry is safe.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
	}

	return err
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
