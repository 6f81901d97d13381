package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, name, description, price_cents, image, quantity,
                     category, status, is_deleted, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, in ProductInput) (Product, error) {
	if in.PriceCents < 0 {
		return Product{}, fmt.Errorf("negative price %d", in.PriceCents)
	}
	if in.Quantity < 0 {
		return Product{}, fmt.Errorf("negative quantity %d", in.Quantity)
	}
	now := time.Now().UTC()
	p := Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Image:       in.Image,
		Quantity:    in.Quantity,
		Category:    in.Category,
		Status:      StatusFor(in.Quantity),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, name, description, price_cents, image,
		                      quantity, category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Image,
		p.Quantity, p.Category, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetByID excludes soft-deleted rows.
func (r *Repo) GetByID(ctx context.Context, id string) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+productCols+` FROM products
		WHERE id = $1 AND NOT is_deleted`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// List returns non-deleted products, optionally filtered by category.
func (r *Repo) List(ctx context.Context, category string) ([]Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE NOT is_deleted`
	args := []any{}
	if category != "" {
		q += ` AND category = $1`
		args = append(args, category)
	}
	q += ` ORDER BY name`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites an admin-editable product. It takes the same row
// lock as checkout so an edit never clobbers a concurrent decrement.
func (r *Repo) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	if in.PriceCents < 0 {
		return Product{}, fmt.Errorf("negative price %d", in.PriceCents)
	}
	if in.Quantity < 0 {
		return Product{}, fmt.Errorf("negative quantity %d", in.Quantity)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT true FROM products
		WHERE id = $1 AND NOT is_deleted
		FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Product{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, image = $5,
		    quantity = $6, category = $7, status = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+productCols,
		id, in.Name, in.Description, in.PriceCents, in.Image,
		in.Quantity, in.Category, StatusFor(in.Quantity))
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, err
	}
	return p, tx.Commit(ctx)
}

// SoftDelete flags a product; it never physically removes the row.
func (r *Repo) SoftDelete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET is_deleted = true, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Image,
		&p.Quantity, &p.Category, &p.Status, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
