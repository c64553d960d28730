package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"momo-checkout/internal/domain"
)

type PaymentRepo interface {
	CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, error)
	// UpdateOrderRef re-points the representative order of a payment.
	UpdateOrderRef(ctx context.Context, paymentID, orderID uuid.UUID) error
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, buyer_id, amount, method, status, transaction_id, order_id, items, created_at, updated_at`

func (r *paymentRepo) CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	items, err := json.Marshal(payment.Items)
	if err != nil {
		return err
	}
	_, err = on(r.db, tx).ExecContext(ctx, `
		INSERT INTO payments (id, buyer_id, amount, method, status, transaction_id, order_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		payment.ID, payment.BuyerID, payment.Amount, payment.Method, payment.Status,
		payment.TransactionID, payment.OrderID, string(items), payment.CreatedAt, payment.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE buyer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		buyerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepo) UpdateOrderRef(ctx context.Context, paymentID, orderID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE payments SET order_id = $2, updated_at = now() WHERE id = $1",
		paymentID, orderID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var (
		p     domain.Payment
		txn   sql.NullString
		items []byte
	)
	err := s.Scan(
		&p.ID,
		&p.BuyerID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&txn,
		&p.OrderID,
		&items,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if txn.Valid {
		p.TransactionID = &txn.String
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &p.Items); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
