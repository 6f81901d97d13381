package orders

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Transactional properties need a real Postgres; set TEST_POSTGRES_DSN
// to run these, otherwise they skip.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE products, orders`)
	require.NoError(t, err)
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, qty int, priceCents int64) string {
	t.Helper()
	id := uuid.NewString()
	status := "Available"
	if qty == 0 {
		status = "Sold Out"
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, name, description, price_cents, image,
		                      quantity, category, status)
		VALUES ($1, 'Widget', '', $2, '', $3, 'tools', $4)`,
		id, priceCents, qty, status)
	require.NoError(t, err)
	return id
}

func productState(t *testing.T, pool *pgxpool.Pool, id string) (qty int, status string) {
	t.Helper()
	err := pool.QueryRow(context.Background(),
		`SELECT quantity, status FROM products WHERE id=$1`, id).Scan(&qty, &status)
	require.NoError(t, err)
	return qty, status
}

func countOrders(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&n)
	require.NoError(t, err)
	return n
}

func placeInput(items []LineItem, total int64) PlaceOrderInput {
	return PlaceOrderInput{
		Name:          "Jo Buyer",
		Address:       "1 Main St",
		ContactNumber: "555-0100",
		Items:         items,
		TotalCents:    total,
	}
}

func TestPlaceOrder_DecrementsStockAndCreatesPendingOrder(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	pid := seedProduct(t, pool, 5, 1000)

	o, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 3}}, 3000))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Len(t, o.Ref, refLen)
	assert.NotEqual(t, o.ID, o.Ref)
	assert.Equal(t, int64(3000), o.TotalCents)
	assert.Nil(t, o.OrderDoneDate)

	qty, status := productState(t, pool, pid)
	assert.Equal(t, 2, qty)
	assert.Equal(t, "Available", status)
}

func TestPlaceOrder_ExactStockGoesSoldOut(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	pid := seedProduct(t, pool, 3, 500)

	_, err := repo.PlaceOrder(context.Background(),
		placeInput([]LineItem{{ProductID: pid, Quantity: 3}}, 1500))
	require.NoError(t, err)

	qty, status := productState(t, pool, pid)
	assert.Equal(t, 0, qty)
	assert.Equal(t, "Sold Out", status)
}

func TestPlaceOrder_InsufficientStockRejectsWholeOrder(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	pid := seedProduct(t, pool, 2, 1000)

	_, err := repo.PlaceOrder(context.Background(),
		placeInput([]LineItem{{ProductID: pid, Quantity: 3}}, 3000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	qty, _ := productState(t, pool, pid)
	assert.Equal(t, 2, qty)
	assert.Equal(t, 0, countOrders(t, pool))
}

func TestPlaceOrder_FailedItemRollsBackEarlierDecrements(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	p1 := seedProduct(t, pool, 5, 1000)
	p2 := seedProduct(t, pool, 1, 2000)

	_, err := repo.PlaceOrder(context.Background(), placeInput([]LineItem{
		{ProductID: p1, Quantity: 2},
		{ProductID: p2, Quantity: 3},
	}, 8000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// p1 was decremented inside the tx before p2 failed; the rollback
	// must have restored it.
	q1, _ := productState(t, pool, p1)
	q2, _ := productState(t, pool, p2)
	assert.Equal(t, 5, q1)
	assert.Equal(t, 1, q2)
	assert.Equal(t, 0, countOrders(t, pool))
}

func TestPlaceOrder_UnknownAndDeletedProductsRejected(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	_, err := repo.PlaceOrder(ctx,
		placeInput([]LineItem{{ProductID: uuid.NewString(), Quantity: 1}}, 100))
	assert.ErrorIs(t, err, ErrProductNotFound)

	pid := seedProduct(t, pool, 5, 1000)
	_, err = pool.Exec(ctx, `UPDATE products SET is_deleted = true WHERE id=$1`, pid)
	require.NoError(t, err)

	_, err = repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 1}}, 1000))
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 0, countOrders(t, pool))
}

func TestPlaceOrder_ClientTotalMustMatchCatalog(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	pid := seedProduct(t, pool, 5, 1000)

	_, err := repo.PlaceOrder(context.Background(),
		placeInput([]LineItem{{ProductID: pid, Quantity: 2}}, 1)) // catalog says 2000
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTotalMismatch)

	qty, _ := productState(t, pool, pid)
	assert.Equal(t, 5, qty, "rejected total must not leak a decrement")
	assert.Equal(t, 0, countOrders(t, pool))
}

func TestPlaceOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	pid := seedProduct(t, pool, 5, 1000)
	in := placeInput([]LineItem{{ProductID: pid, Quantity: 3}}, 3000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.PlaceOrder(context.Background(), in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two racing checkouts may win")

	qty, _ := productState(t, pool, pid)
	assert.Equal(t, 2, qty, "stock must end at 5-3, never negative")
	assert.Equal(t, 1, countOrders(t, pool))
}

func TestPlaceOrder_TotalFixedAtPlacementTime(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	pid := seedProduct(t, pool, 5, 1000)
	o, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 2}}, 2000))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE products SET price_cents = 9999 WHERE id=$1`, pid)
	require.NoError(t, err)

	got, err := repo.GetByRef(ctx, o.Ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalCents, "price changes must not rewrite placed orders")
}

func TestMarkDone_IdempotentAndKeepsFirstTimestamp(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	pid := seedProduct(t, pool, 5, 1000)
	o, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 1}}, 1000))
	require.NoError(t, err)

	t1 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	done, err := repo.MarkDone(ctx, o.ID, t1)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
	require.NotNil(t, done.OrderDoneDate)
	assert.True(t, done.OrderDoneDate.Equal(t1))

	t2 := t1.Add(48 * time.Hour)
	again, err := repo.MarkDone(ctx, o.ID, t2)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, again.Status)
	require.NotNil(t, again.OrderDoneDate)
	assert.True(t, again.OrderDoneDate.Equal(t1), "second call must keep the first timestamp")
}

func TestMarkDone_UnknownOrderIsExplicitNotFound(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}

	_, err := repo.MarkDone(context.Background(), uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	pid := seedProduct(t, pool, 10, 1000)

	first, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 1}}, 1000))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 1}}, 1000))
	require.NoError(t, err)

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestGetByRef(t *testing.T) {
	pool := testPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	pid := seedProduct(t, pool, 5, 1000)
	o, err := repo.PlaceOrder(ctx, placeInput([]LineItem{{ProductID: pid, Quantity: 1}}, 1000))
	require.NoError(t, err)

	got, err := repo.GetByRef(ctx, o.Ref)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = repo.GetByRef(ctx, "NOSUCHREFXYZ")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
