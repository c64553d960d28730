package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/infrastructure/payment"
	"momo-checkout/internal/repo"
)

type CheckoutService interface {
	SubmitCartCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

// Approver blocks until the payer confirms the transaction ref.
type Approver interface {
	Wait(ctx context.Context, ref string) (*payment.Event, error)
}

type CheckoutOptions struct {
	Environment  string
	StoreTimeout time.Duration

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type checkoutService struct {
	tx          repo.Transactor
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.PaymentGateway
	approver    Approver
	opts        CheckoutOptions
	log         *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewCheckoutService(
	tx repo.Transactor,
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.PaymentGateway,
	approver Approver,
	opts CheckoutOptions,
	log *slog.Logger,
) CheckoutService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 10 * time.Second
	}
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &checkoutService{
		tx:          tx,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		approver:    approver,
		opts:        opts,
		log:         log,
		tracer:      opts.TracerProvider.Tracer("checkout"),
		now:         time.Now,
	}
}

// SubmitCartCheckout runs one checkout batch: create pending orders, charge
// the payer once for the batch total, wait for the approval, then settle
// every order as paid or compensate every order as failed.
func (s *checkoutService) SubmitCartCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "SubmitCartCheckout")
	defer span.End()

	batchID := uuid.New()
	log := s.log.With("batch_id", batchID, "buyer_id", req.BuyerID)
	span.SetAttributes(attribute.String("batch.id", batchID.String()), attribute.Int64("buyer.id", req.BuyerID))

	if strings.TrimSpace(req.ContactNumber) == "" {
		return nil, s.reject(span, &domain.ValidationError{Index: -1, Field: "number", Reason: "is required"})
	}
	orders, err := Materialize(req.BuyerID, req.CartItems, req.OrderDetails, s.now())
	if err != nil {
		return nil, s.reject(span, err)
	}
	total := domain.BatchTotal(orders)
	if !total.IsPositive() {
		return nil, s.reject(span, &domain.ValidationError{Index: -1, Field: "amount", Reason: "must be positive"})
	}
	if !req.TotalAmount.IsZero() && !req.TotalAmount.Equal(total) {
		return nil, s.reject(span, &domain.ValidationError{
			Index:  -1,
			Field:  "amount",
			Reason: fmt.Sprintf("%s does not match order total %s", req.TotalAmount, total),
		})
	}
	ids := domain.OrderIDs(orders)

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.orderRepo.CreateOrders(ctx, tx, orders)
	})
	if err != nil {
		log.Error("create orders failed", "err", err)
		return nil, s.reject(span, &domain.PersistenceError{Op: "create orders", Err: err})
	}
	s.transition(ctx, log, domain.BatchCreated, "orders", len(orders), "amount", total.String())

	// From here on the batch must end settled or failed even if the caller
	// goes away; the approval deadline still bounds the wait.
	ctx = context.WithoutCancel(ctx)

	ref, err := s.gateway.CashIn(ctx, payment.CashInRequest{
		Number:      req.ContactNumber,
		Amount:      total,
		Environment: s.opts.Environment,
	})
	if err != nil {
		return nil, s.reject(span, s.compensate(ctx, log, "", ids, domain.BatchRejected, err))
	}
	log = log.With("ref", ref)
	span.SetAttributes(attribute.String("payment.ref", ref))
	s.transition(ctx, log, domain.BatchCharging)

	if _, err := s.approver.Wait(ctx, ref); err != nil {
		state := domain.BatchRejected
		var timeout *domain.TimeoutError
		if errors.As(err, &timeout) {
			state = domain.BatchTimeout
		}
		return nil, s.reject(span, s.compensate(ctx, log, ref, ids, state, err))
	}
	s.transition(ctx, log, domain.BatchApproved)

	res, err := s.settle(ctx, log, req, orders, ref)
	if err != nil {
		return nil, s.reject(span, err)
	}
	return res, nil
}

func (s *checkoutService) settle(ctx context.Context, log *slog.Logger, req domain.CheckoutRequest, orders []domain.Order, ref string) (*domain.CheckoutResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	now := s.now().UTC()
	txn := ref
	p := &domain.Payment{
		ID:            uuid.New(),
		BuyerID:       req.BuyerID,
		Amount:        domain.BatchTotal(orders),
		Method:        domain.PaymentMethodPaypack,
		Status:        domain.PaymentPaid,
		TransactionID: &txn,
		OrderID:       orders[0].ID,
		Items:         domain.NewItemsSnapshot(orders, req.CartItems),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ids := domain.OrderIDs(orders)

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.paymentRepo.CreatePayment(ctx, tx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := s.orderRepo.MarkPaid(ctx, tx, ids, p.ID); err != nil {
			return fmt.Errorf("mark orders paid: %w", err)
		}
		return nil
	})
	if err != nil {
		// The payer has been charged; leave the orders pending so the charge
		// can be matched by hand instead of failing paid orders.
		log.Error("settlement failed after approved charge", "err", err, "payment_id", p.ID)
		return nil, &domain.PersistenceError{Op: "settle payment", Err: err}
	}
	s.transition(ctx, log, domain.BatchSettled, "payment_id", p.ID)

	return &domain.CheckoutResult{
		PaymentID:     p.ID,
		TransactionID: ref,
		OrderIDs:      ids,
	}, nil
}

// compensate marks every order of the batch failed with one statement in
// its own transaction, so a batch is never left half failed. A store error
// here is returned as is; there is no second attempt.
func (s *checkoutService) compensate(ctx context.Context, log *slog.Logger, ref string, ids []uuid.UUID, state domain.BatchState, cause error) error {
	s.transition(ctx, log, state, "err", cause)

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.orderRepo.MarkFailed(ctx, tx, ids)
	})
	if err != nil {
		log.Error("compensation failed, orders may remain pending", "err", err, "cause", cause)
		return &domain.PersistenceError{Op: "mark orders failed", Err: err}
	}
	s.transition(ctx, log, domain.BatchFailed)
	return &domain.PaymentFailedError{Ref: ref, OrderIDs: ids, Err: cause}
}

func (s *checkoutService) transition(ctx context.Context, log *slog.Logger, state domain.BatchState, args ...any) {
	trace.SpanFromContext(ctx).AddEvent(string(state))
	level := slog.LevelInfo
	if state == domain.BatchTimeout || state == domain.BatchRejected {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "checkout batch "+string(state), append([]any{"state", state}, args...)...)
}

func (s *checkoutService) reject(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
