package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/logging"
	"momo-checkout/internal/repo/repotest"
)

func decimalOne() decimal.Decimal { return decimal.NewFromInt(1) }

func order(status domain.OrderStatus, age time.Duration) domain.Order {
	ts := time.Now().Add(-age)
	return domain.Order{
		ID:          uuid.New(),
		BuyerID:     1,
		ProductID:   1,
		Quantity:    1,
		TotalAmount: decimalOne(),
		Status:      status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func TestReconciliation_FailsOnlyStalePendingOrders(t *testing.T) {
	orders := repotest.NewOrders()
	stale := order(domain.OrderPending, time.Hour)
	fresh := order(domain.OrderPending, time.Second)
	paid := order(domain.OrderPaid, time.Hour)
	for _, o := range []domain.Order{stale, fresh, paid} {
		orders.Put(o)
	}

	rw := NewReconciliationWorker(&repotest.Tx{}, orders, time.Minute, 10*time.Minute, 0, logging.Discard())
	n, err := rw.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ctx := context.Background()
	got, _ := orders.FindById(ctx, stale.ID)
	assert.Equal(t, domain.OrderFailed, got.Status)
	got, _ = orders.FindById(ctx, fresh.ID)
	assert.Equal(t, domain.OrderPending, got.Status)
	got, _ = orders.FindById(ctx, paid.ID)
	assert.Equal(t, domain.OrderPaid, got.Status)
}

func TestReconciliation_RespectsBatchSize(t *testing.T) {
	orders := repotest.NewOrders()
	for i := 0; i < 5; i++ {
		orders.Put(order(domain.OrderPending, time.Hour))
	}
	rw := NewReconciliationWorker(&repotest.Tx{}, orders, time.Minute, time.Minute, 2, logging.Discard())

	n, err := rw.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReconciliation_StoreError(t *testing.T) {
	orders := repotest.NewOrders()
	orders.FindStuckErr = errors.New("timeout")
	rw := NewReconciliationWorker(&repotest.Tx{}, orders, time.Minute, time.Minute, 10, logging.Discard())

	_, err := rw.process(context.Background())
	assert.Error(t, err)
}

func TestReconciliation_RunStopsWithContext(t *testing.T) {
	orders := repotest.NewOrders()
	stale := order(domain.OrderPending, time.Hour)
	orders.Put(stale)
	rw := NewReconciliationWorker(&repotest.Tx{}, orders, 5*time.Millisecond, time.Minute, 10, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, _ := orders.FindById(context.Background(), stale.ID)
		return got.Status == domain.OrderFailed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestReconciliation_MarksPageInsideTransaction(t *testing.T) {
	orders := repotest.NewOrders()
	orders.Put(order(domain.OrderPending, time.Hour))
	orders.Put(order(domain.OrderPending, time.Hour))
	tx := &repotest.Tx{}
	rw := NewReconciliationWorker(tx, orders, time.Minute, time.Minute, 10, logging.Discard())

	n, err := rw.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, tx.Calls)
}

func TestReconciliation_MarkFailedErrorReportsNothingFailed(t *testing.T) {
	orders := repotest.NewOrders()
	stale := order(domain.OrderPending, time.Hour)
	orders.Put(stale)
	orders.MarkFailedErr = errors.New("updated 0 of 1 orders")
	rw := NewReconciliationWorker(&repotest.Tx{}, orders, time.Minute, time.Minute, 10, logging.Discard())

	n, err := rw.process(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	got, _ := orders.FindById(context.Background(), stale.ID)
	assert.Equal(t, domain.OrderPending, got.Status)
}
