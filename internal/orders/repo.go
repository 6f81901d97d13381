package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTotalMismatch     = errors.New("total amount mismatch")
	ErrOrderNotFound     = errors.New("order not found")
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_ref, name, address, contact_number, total_cents,
                   status, created_at, order_date, order_done_date`

// PlaceOrder runs checkout as one transaction: lock each product row
// (FOR UPDATE), guard-decrement its stock, verify the client total
// against catalog prices, insert exactly one order row. Any failure
// rolls the whole thing back; no partial state is ever visible.
func (r *Repo) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Items are processed in the order supplied. The row lock makes
	// concurrent checkouts against the same product serialize, so the
	// quantity check below cannot race.
	var total int64
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}

		var priceCents int64
		var stock int
		err := tx.QueryRow(ctx, `
			SELECT price_cents, quantity FROM products
			WHERE id = $1 AND NOT is_deleted
			FOR UPDATE`, it.ProductID).Scan(&priceCents, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return Order{}, err
		}
		if stock < it.Quantity {
			return Order{}, fmt.Errorf("%w: product %s has %d, need %d",
				ErrInsufficientStock, it.ProductID, stock, it.Quantity)
		}

		// Decrement and keep status consistent in the same statement.
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET quantity = quantity - $2,
			    status = CASE WHEN quantity - $2 > 0 THEN 'Available' ELSE 'Sold Out' END,
			    updated_at = now()
			WHERE id = $1`, it.ProductID, it.Quantity); err != nil {
			return Order{}, err
		}

		total += priceCents * int64(it.Quantity)
	}

	// The client total is locked in at placement, but only if it matches
	// current catalog prices exactly.
	if total != in.TotalCents {
		return Order{}, fmt.Errorf("%w: client sent %d, catalog says %d",
			ErrTotalMismatch, in.TotalCents, total)
	}

	now := time.Now().UTC()
	o := Order{
		ID:            uuid.NewString(),
		Ref:           NewRef(),
		Name:          in.Name,
		Address:       in.Address,
		ContactNumber: in.ContactNumber,
		TotalCents:    total,
		Status:        StatusPending,
		CreatedAt:     now,
		OrderDate:     now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_ref, name, address, contact_number,
		                    total_cents, status, created_at, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Ref, o.Name, o.Address, o.ContactNumber,
		o.TotalCents, o.Status, o.CreatedAt, o.OrderDate); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// MarkDone transitions an order Pending -> Done and stamps the
// completion time. Repeated calls keep the first timestamp. A missing
// order is an explicit ErrOrderNotFound, never a silent no-op.
func (r *Repo) MarkDone(ctx context.Context, orderID string, doneAt time.Time) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE orders
		SET status = $2,
		    order_done_date = COALESCE(order_done_date, $3)
		WHERE id = $1
		RETURNING `+orderCols, orderID, StatusDone, doneAt.UTC())
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, err
}

// List returns all orders newest-first.
func (r *Repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) GetByRef(ctx context.Context, ref string) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders WHERE order_ref = $1`, ref)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	return o, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Ref, &o.Name, &o.Address, &o.ContactNumber,
		&o.TotalCents, &o.Status, &o.CreatedAt, &o.OrderDate, &o.OrderDoneDate)
	return o, err
}
