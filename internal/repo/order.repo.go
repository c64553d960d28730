package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"momo-checkout/internal/domain"
)

type OrderRepo interface {
	CreateOrders(ctx context.Context, tx *sql.Tx, orders []domain.Order) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Order, error)
	// MarkPaid and MarkFailed move a whole batch out of pending with a
	// single statement; they fail unless every id was still pending. Call
	// them with a tx so a partial match is rolled back.
	MarkPaid(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, paymentID uuid.UUID) error
	MarkFailed(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error
	FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, buyer_id, product_id, quantity, total_amount, shipping_address,
	contact_number, status, payment_id, created_at, updated_at`

func (r *orderRepo) CreateOrders(ctx context.Context, tx *sql.Tx, orders []domain.Order) error {
	q := on(r.db, tx)
	for _, o := range orders {
		_, err := q.ExecContext(ctx, `
			INSERT INTO orders (id, buyer_id, product_id, quantity, total_amount, shipping_address,
				contact_number, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID, o.BuyerID, o.ProductID, o.Quantity, o.TotalAmount, o.ShippingAddress,
			o.ContactNumber, o.Status, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}
	return nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ANY($1::uuid[]) ORDER BY created_at, id",
		uuidStrings(ids),
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepo) MarkPaid(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, paymentID uuid.UUID) error {
	res, err := on(r.db, tx).ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_id = $2, updated_at = now()
		WHERE id = ANY($3::uuid[]) AND status = $4`,
		domain.OrderPaid, paymentID, uuidStrings(ids), domain.OrderPending,
	)
	if err != nil {
		return err
	}
	return expectRows(res, len(ids))
}

func (r *orderRepo) MarkFailed(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	res, err := on(r.db, tx).ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = now()
		WHERE id = ANY($2::uuid[]) AND status = $3`,
		domain.OrderFailed, uuidStrings(ids), domain.OrderPending,
	)
	if err != nil {
		return err
	}
	return expectRows(res, len(ids))
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3",
		domain.OrderPending, time.Now().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o         domain.Order
		paymentID uuid.NullUUID
	)
	err := s.Scan(
		&o.ID,
		&o.BuyerID,
		&o.ProductID,
		&o.Quantity,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.ContactNumber,
		&o.Status,
		&paymentID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		o.PaymentID = &paymentID.UUID
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func expectRows(res sql.Result, want int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) != want {
		return fmt.Errorf("updated %d of %d orders", n, want)
	}
	return nil
}
