// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/repo"
)

// Tx runs the callback without a real transaction.
type Tx struct {
	mu    sync.Mutex
	Calls int
}

func (t *Tx) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()
	return fn(nil)
}

type Orders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
	seq    []uuid.UUID

	CreateErr     error
	MarkPaidErr   error
	MarkFailedErr error
	FindStuckErr  error
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[uuid.UUID]domain.Order)}
}

var _ repo.OrderRepo = (*Orders)(nil)

func (m *Orders) CreateOrders(ctx context.Context, tx *sql.Tx, orders []domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, o := range orders {
		m.orders[o.ID] = o
		m.seq = append(m.seq, o.ID)
	}
	return nil
}

func (m *Orders) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Orders) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, id := range ids {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Orders) MarkPaid(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, paymentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkPaidErr != nil {
		return m.MarkPaidErr
	}
	if err := m.allPendingLocked(ids); err != nil {
		return err
	}
	pid := paymentID
	for _, id := range ids {
		o := m.orders[id]
		o.Status = domain.OrderPaid
		o.PaymentID = &pid
		o.UpdatedAt = time.Now().UTC()
		m.orders[id] = o
	}
	return nil
}

func (m *Orders) MarkFailed(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	if err := m.allPendingLocked(ids); err != nil {
		return err
	}
	for _, id := range ids {
		o := m.orders[id]
		o.Status = domain.OrderFailed
		o.UpdatedAt = time.Now().UTC()
		m.orders[id] = o
	}
	return nil
}

func (m *Orders) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindStuckErr != nil {
		return nil, m.FindStuckErr
	}
	cutoff := time.Now().Add(-olderThan)
	var out []domain.Order
	for _, id := range m.seq {
		o := m.orders[id]
		if o.Status == domain.OrderPending && o.UpdatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored order in insertion order.
func (m *Orders) All() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, m.orders[id])
	}
	return out
}

// Put stores o as is, bypassing validation.
func (m *Orders) Put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		m.seq = append(m.seq, o.ID)
	}
	m.orders[o.ID] = o
}

func (m *Orders) allPendingLocked(ids []uuid.UUID) error {
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || o.Status != domain.OrderPending {
			return fmt.Errorf("order %s is not pending", id)
		}
	}
	return nil
}

type Payments struct {
	mu       sync.Mutex
	payments map[uuid.UUID]domain.Payment
	seq      []uuid.UUID

	CreateErr error
	ListErr   error
}

func NewPayments() *Payments {
	return &Payments{payments: make(map[uuid.UUID]domain.Payment)}
}

var _ repo.PaymentRepo = (*Payments)(nil)

func (m *Payments) CreatePayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, existing := range m.payments {
		if p.TransactionID != nil && existing.TransactionID != nil && *existing.TransactionID == *p.TransactionID {
			return fmt.Errorf("duplicate transaction %s", *p.TransactionID)
		}
	}
	m.payments[p.ID] = *p
	m.seq = append(m.seq, p.ID)
	return nil
}

func (m *Payments) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Payments) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []domain.Payment
	for i := len(m.seq) - 1; i >= 0; i-- {
		if p := m.payments[m.seq[i]]; p.BuyerID == buyerID {
			out = append(out, p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Payments) UpdateOrderRef(ctx context.Context, paymentID, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return repo.ErrNotFound
	}
	p.OrderID = orderID
	m.payments[paymentID] = p
	return nil
}

func (m *Payments) All() []domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Payment, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, m.payments[id])
	}
	return out
}
