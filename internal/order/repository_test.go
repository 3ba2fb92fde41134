package order

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

const testOrderID = "5f0c8d4e-3a1b-4c2d-9e8f-7a6b5c4d3e2f"

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

var (
	orderCols = []string{"id", "user_id", "order_code", "total_amount", "shipping_fee", "shipping_address",
		"notes", "status", "payment_status", "created_at", "updated_at"}
	itemCols = []string{"id", "order_id", "product_id", "quantity", "price", "total_price"}
)

func orderRow(now time.Time, status string) *pgxmock.Rows {
	return pgxmock.NewRows(orderCols).AddRow(testOrderID, "u1", "ORD-X", decimal.NewFromInt(25), decimal.NewFromInt(5),
		"1 Main St", "", status, "pending", now, now)
}

func TestCreate_InsertsOrderAndItems(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	o := &Order{
		ID:            testOrderID,
		UserID:        "u1",
		OrderCode:     "ORD-X",
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Items: []Item{
			{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)},
		},
	}

	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(testOrderID, "u1", "ORD-X", pgxmock.AnyArg(), pgxmock.AnyArg(), "", "", "pending", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), testOrderID, "p1", 2, pgxmock.AnyArg(), pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, testOrderID, o.Items[0].OrderID)
	assert.NotEmpty(t, o.Items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateCodeIsConflict(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: codeUniqueConstraint})

	err := repo.Create(context.Background(), &Order{UserID: "u1", OrderCode: "ORD-X"})
	require.ErrorIs(t, err, db.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(testOrderID).
		WillReturnRows(orderRow(now, "pending"))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs([]string{testOrderID}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("i1", testOrderID, "p1", 2, decimal.NewFromInt(10), decimal.NewFromInt(20)))

	o, err := repo.GetForUpdate(context.Background(), testOrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, []Item{{ID: "i1", OrderID: testOrderID, ProductID: "p1", Quantity: 2,
		Price: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)}}, o.Items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`FROM orders WHERE id=\$1`).WithArgs(testOrderID).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), testOrderID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_StaleFromIsRejected(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`UPDATE orders SET status=\$3, payment_status=\$4, updated_at=now\(\) WHERE id=\$1 AND status=\$2`).
		WithArgs(testOrderID, "pending", "cancelled", "pending").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), testOrderID, StatusPending, StatusCancelled, PaymentPending)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser_CountsAndPages(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT count\(\*\) FROM orders WHERE user_id=\$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("u1", 5, 5).
		WillReturnRows(orderRow(now, "shipped"))
	mock.ExpectQuery(`FROM order_items`).
		WithArgs([]string{testOrderID}).
		WillReturnRows(pgxmock.NewRows(itemCols))

	orders, total, err := repo.ListByUser(context.Background(), "u1", Page{Number: 2, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, orders, 1)
	assert.Equal(t, StatusShipped, orders[0].Status)
	assert.NotNil(t, orders[0].Items)
	require.NoError(t, mock.ExpectationsWereMet())
}
