package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendora/marketplace/internal/stock"
)

// PgStore implements OrderStore using PostgreSQL as the data store.
// The confirm path relies on SELECT ... FOR UPDATE row locks so that the
// availability check and the stock write are isolated from concurrent
// confirmations of the same units.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of OrderStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const orderColumns = `id, seller_id, buyer_id, conversation_id, status, total_price, tracking_ref,
	created_at, confirmed_at, shipped_at, delivered_at, cancelled_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SellerID, &o.BuyerID, &o.ConversationID, &o.Status, &o.TotalPrice,
		&o.TrackingRef, &o.CreatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Order, []OrderItem, error) {
	var order *Order
	var items []OrderItem

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to find order: %w", err)
		}

		items, err = p.findItems(ctx, tx, id)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	return order, items, nil
}

func (p *PgStore) findItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, order_id, product_id, variant_id, shop_id, product_name, variant_name, quantity, unit_price, price
		 FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ShopID,
			&it.ProductName, &it.VariantName, &it.Quantity, &it.UnitPrice, &it.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *PgStore) FindByUser(ctx context.Context, userID uuid.UUID, offset, limit int32) ([]Order, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE buyer_id = $1 OR seller_id = $1
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find user orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.SellerID, &o.BuyerID, &o.ConversationID, &o.Status, &o.TotalPrice,
			&o.TrackingRef, &o.CreatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Confirm flips the order to confirmed and applies the decrement plan in
// one transaction. The status update runs first: its conditional WHERE is
// the at-most-once guard, so a concurrent confirm of the same order loses
// before any stock row is touched.
func (p *PgStore) Confirm(ctx context.Context, id uuid.UUID, plan PlanFunc) (*Order, []stock.Decrement, error) {
	var order *Order
	var decrements []stock.Decrement

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = $1, confirmed_at = now()
			 WHERE id = $2 AND status = $3
			 RETURNING `+orderColumns, StatusConfirmed, id, StatusPending))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return p.classifyMissedUpdate(ctx, tx, id)
			}
			return fmt.Errorf("failed to confirm order: %w", err)
		}

		items, err := p.findItems(ctx, tx, id)
		if err != nil {
			return err
		}

		levels, err := p.lockLevels(ctx, tx, items)
		if err != nil {
			return err
		}

		decrements, err = plan(levels)
		if err != nil {
			return err
		}

		for _, d := range decrements {
			if err := p.applyDecrement(ctx, tx, d); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if txErr != nil {
		return nil, nil, mapConflict(txErr)
	}
	return order, decrements, nil
}

// classifyMissedUpdate distinguishes a vanished order from a status guard
// miss after a conditional update affected no rows.
func (p *PgStore) classifyMissedUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var status Status
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to find order: %w", err)
	}
	return fmt.Errorf("order is %s: %w", status, ErrInvalidTransition)
}

// lockLevels loads and locks the stock row behind every line item. Rows are
// locked in a stable order so concurrent confirmations of overlapping
// orders cannot deadlock.
func (p *PgStore) lockLevels(ctx context.Context, tx pgx.Tx, items []OrderItem) ([]stock.Level, error) {
	sorted := make([]OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID.String() < sorted[j].ProductID.String()
		}
		return variantKey(sorted[i].VariantID) < variantKey(sorted[j].VariantID)
	})

	levels := make([]stock.Level, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, it := range sorted {
		key := it.ProductID.String() + "/" + variantKey(it.VariantID)
		if seen[key] {
			continue
		}
		seen[key] = true

		lv, err := p.lockLevel(ctx, tx, it)
		if err != nil {
			return nil, err
		}
		if lv != nil {
			levels = append(levels, *lv)
		}
	}
	return levels, nil
}

func (p *PgStore) lockLevel(ctx context.Context, tx pgx.Tx, it OrderItem) (*stock.Level, error) {
	if it.VariantID != nil {
		var lv stock.Level
		var variantID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT v.product_id, v.id, v.stock, v.name, p.name
			 FROM product_variants v JOIN products p ON p.id = v.product_id
			 WHERE v.id = $1 AND v.product_id = $2
			 FOR UPDATE OF v`, *it.VariantID, it.ProductID).
			Scan(&lv.ProductID, &variantID, &lv.Available, &lv.VariantName, &lv.ProductName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// absence is reported by the planner as VariantNotFound
				return nil, nil
			}
			return nil, fmt.Errorf("failed to lock variant stock: %w", err)
		}
		lv.VariantID = &variantID
		lv.HasVariants = true
		return &lv, nil
	}

	var lv stock.Level
	err := tx.QueryRow(ctx,
		`SELECT id, quantity, has_variants, name FROM products WHERE id = $1 FOR UPDATE`, it.ProductID).
		Scan(&lv.ProductID, &lv.Available, &lv.HasVariants, &lv.ProductName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock product stock: %w", err)
	}
	return &lv, nil
}

func (p *PgStore) applyDecrement(ctx context.Context, tx pgx.Tx, d stock.Decrement) error {
	if d.VariantID != nil {
		_, err := tx.Exec(ctx,
			`UPDATE product_variants SET stock = $1 WHERE id = $2`, d.Remaining, *d.VariantID)
		if err != nil {
			return fmt.Errorf("failed to write variant stock: %w", err)
		}
		return nil
	}
	_, err := tx.Exec(ctx,
		`UPDATE products SET quantity = $1, available = available AND NOT $2 WHERE id = $3`,
		d.Remaining, d.MarkUnavailable, d.ProductID)
	if err != nil {
		return fmt.Errorf("failed to write product stock: %w", err)
	}
	return nil
}

// Transition conditionally moves the order between statuses, stamping the
// matching timestamp column.
func (p *PgStore) Transition(ctx context.Context, id uuid.UUID, from, to Status, tracking string) (*Order, error) {
	stampCol, ok := stampColumn(to)
	if !ok {
		return nil, fmt.Errorf("no timestamp column for status %s: %w", to, ErrInvalidTransition)
	}

	var order *Order
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = $1, `+stampCol+` = now(),
			        tracking_ref = CASE WHEN $2 <> '' THEN $2 ELSE tracking_ref END
			 WHERE id = $3 AND status = $4
			 RETURNING `+orderColumns, to, tracking, id, from))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return p.classifyMissedUpdate(ctx, tx, id)
			}
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order = o
		return nil
	})
	if txErr != nil {
		return nil, mapConflict(txErr)
	}
	return order, nil
}

// stampColumn maps a target status to its timestamp column. The column name
// comes from this fixed set, never from input.
func stampColumn(to Status) (string, bool) {
	switch to {
	case StatusConfirmed:
		return "confirmed_at", true
	case StatusShipped:
		return "shipped_at", true
	case StatusDelivered:
		return "delivered_at", true
	case StatusCancelled:
		return "cancelled_at", true
	default:
		return "", false
	}
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionBegin, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", ErrTransactionRollback, rbErr)
		}
		return err
	}

	// The cause stays wrapped so a commit-time serialization abort still
	// reaches mapConflict.
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionCommit, err)
	}
	return nil
}

// mapConflict converts serialization and deadlock aborts into the retryable
// ErrConcurrencyConflict.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%v: %w", err, ErrConcurrencyConflict)
		}
	}
	return err
}

func variantKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
