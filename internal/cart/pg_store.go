package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements LineStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of LineStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const lineColumns = `id, buyer_id, product_id, variant_id, quantity`

func scanLine(row pgx.Row) (*Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.BuyerID, &l.ProductID, &l.VariantID, &l.Quantity)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Line, error) {
	line, err := scanLine(p.db.QueryRow(ctx,
		`SELECT `+lineColumns+` FROM cart_lines WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to find cart line: %w", err)
	}
	return line, nil
}

// Increment bumps the quantity only while it fits under the live stock
// level. The ceiling lookup and the write are one statement, so two
// concurrent increments cannot both slip past the same reading.
func (p *PgStore) Increment(ctx context.Context, id uuid.UUID) (*Line, error) {
	line, err := scanLine(p.db.QueryRow(ctx, `
		UPDATE cart_lines cl
		   SET quantity = cl.quantity + 1
		 WHERE cl.id = $1
		   AND cl.quantity + 1 <= COALESCE(
		         (SELECT v.stock FROM product_variants v WHERE v.id = cl.variant_id),
		         (SELECT p.quantity FROM products p WHERE p.id = cl.product_id))
		RETURNING `+lineColumns, id))
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to increment cart line: %w", err)
	}

	// No row updated: either the line is gone or the ceiling was hit.
	// Re-read to tell the two apart and report the ceiling.
	var available int32
	err = p.db.QueryRow(ctx, `
		SELECT COALESCE(
		         (SELECT v.stock FROM product_variants v WHERE v.id = cl.variant_id),
		         (SELECT p.quantity FROM products p WHERE p.id = cl.product_id), 0)
		  FROM cart_lines cl WHERE cl.id = $1`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to read stock ceiling: %w", err)
	}
	return nil, &StockLimitError{Available: available}
}

// Decrement lowers the quantity by one, deleting the line when it would
// reach zero.
func (p *PgStore) Decrement(ctx context.Context, id uuid.UUID) (*Line, error) {
	line, err := scanLine(p.db.QueryRow(ctx, `
		UPDATE cart_lines
		   SET quantity = quantity - 1
		 WHERE id = $1 AND quantity > 1
		RETURNING `+lineColumns, id))
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to decrement cart line: %w", err)
	}

	line, err = scanLine(p.db.QueryRow(ctx,
		`DELETE FROM cart_lines WHERE id = $1 RETURNING `+lineColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to delete cart line: %w", err)
	}
	line.Quantity = 0
	return line, nil
}
