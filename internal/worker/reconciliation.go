package worker

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/repo"
)

// ReconciliationWorker fails orders left pending by a checkout that never
// finished, e.g. because the process died between order creation and the
// end of the approval wait. staleAfter must be longer than the approval
// deadline so live batches are never touched.
type ReconciliationWorker struct {
	tx         repo.Transactor
	orderRepo  repo.OrderRepo
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	log        *slog.Logger
}

func NewReconciliationWorker(
	tx repo.Transactor,
	orderRepo repo.OrderRepo,
	interval time.Duration,
	staleAfter time.Duration,
	batchSize int,
	log *slog.Logger,
) *ReconciliationWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconciliationWorker{
		tx:         tx,
		orderRepo:  orderRepo,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		log:        log,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation worker started", "interval", rw.interval, "stale_after", rw.staleAfter)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			n, err := rw.process(ctx)
			if err != nil {
				rw.log.Error("reconciliation failed", "err", err)
				continue
			}
			if n > 0 {
				rw.log.Warn("failed stale pending orders", "count", n)
			}
		}
	}
}

// process marks one page of stale pending orders as failed and returns
// how many it touched.
func (rw *ReconciliationWorker) process(ctx context.Context) (int, error) {
	stuck, err := rw.orderRepo.FindStuckOrders(ctx, rw.staleAfter, rw.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	for _, o := range stuck {
		rw.log.Warn("abandoned pending order", "order_id", o.ID, "buyer_id", o.BuyerID, "updated_at", o.UpdatedAt)
	}
	// a page that raced with a settlement is rolled back whole
	err = rw.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return rw.orderRepo.MarkFailed(ctx, tx, domain.OrderIDs(stuck))
	})
	if err != nil {
		return 0, err
	}
	return len(stuck), nil
}
