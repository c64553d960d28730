package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/repo/repotest"
)

func seedSettledBatch(t *testing.T, orders *repotest.Orders, payments *repotest.Payments, buyerID int64) (domain.Payment, []domain.Order) {
	t.Helper()
	ctx := context.Background()
	batch, err := Materialize(buyerID,
		[]domain.CartItem{{ProductID: 1, Price: price(500)}},
		[]domain.OrderDetail{
			{ProductID: 1, Quantity: 1, ShippingAddress: "A", Number: "1"},
			{ProductID: 1, Quantity: 2, ShippingAddress: "B", Number: "1"},
		},
		time.Now(),
	)
	require.NoError(t, err)
	require.NoError(t, orders.CreateOrders(ctx, nil, batch))

	ref := uuid.NewString()
	p := domain.Payment{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Amount:        domain.BatchTotal(batch),
		Method:        domain.PaymentMethodPaypack,
		Status:        domain.PaymentPaid,
		TransactionID: &ref,
		OrderID:       batch[0].ID,
		Items:         domain.NewItemsSnapshot(batch, nil),
	}
	require.NoError(t, payments.CreatePayment(ctx, nil, &p))
	require.NoError(t, orders.MarkPaid(ctx, nil, domain.OrderIDs(batch), p.ID))
	return p, batch
}

func TestListPayments_OnlyCallersPayments(t *testing.T) {
	orders, payments := repotest.NewOrders(), repotest.NewPayments()
	mine, _ := seedSettledBatch(t, orders, payments, 1)
	seedSettledBatch(t, orders, payments, 2)
	svc := NewPaymentService(orders, payments)

	got, err := svc.ListPayments(context.Background(), 1, 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestListPayments_StoreError(t *testing.T) {
	payments := repotest.NewPayments()
	payments.ListErr = errors.New("boom")
	svc := NewPaymentService(repotest.NewOrders(), payments)

	_, err := svc.ListPayments(context.Background(), 1, 20, 0)
	var pErr *domain.PersistenceError
	assert.True(t, errors.As(err, &pErr))
}

func TestAttachOrder(t *testing.T) {
	orders, payments := repotest.NewOrders(), repotest.NewPayments()
	p, batch := seedSettledBatch(t, orders, payments, 1)
	_, otherBatch := seedSettledBatch(t, orders, payments, 1)
	_, strangerBatch := seedSettledBatch(t, orders, payments, 2)
	svc := NewPaymentService(orders, payments)
	ctx := context.Background()

	t.Run("moves representative order within the batch", func(t *testing.T) {
		require.NoError(t, svc.AttachOrder(ctx, 1, p.ID, batch[1].ID))
		got, _ := payments.FindById(ctx, p.ID)
		assert.Equal(t, batch[1].ID, got.OrderID)
	})

	t.Run("unknown payment", func(t *testing.T) {
		err := svc.AttachOrder(ctx, 1, uuid.New(), batch[0].ID)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("someone else's payment", func(t *testing.T) {
		err := svc.AttachOrder(ctx, 2, p.ID, batch[0].ID)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("someone else's order", func(t *testing.T) {
		err := svc.AttachOrder(ctx, 1, p.ID, strangerBatch[0].ID)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("order settled by another payment", func(t *testing.T) {
		err := svc.AttachOrder(ctx, 1, p.ID, otherBatch[0].ID)
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}
