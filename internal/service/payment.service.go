package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/repo"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrOrderNotFound   = errors.New("order not found")
)

type PaymentService interface {
	ListPayments(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, error)
	// AttachOrder changes which order a payment's order reference points at.
	AttachOrder(ctx context.Context, buyerID int64, paymentID, orderID uuid.UUID) error
}

type paymentService struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
}

func NewPaymentService(orderRepo repo.OrderRepo, paymentRepo repo.PaymentRepo) PaymentService {
	return &paymentService{orderRepo: orderRepo, paymentRepo: paymentRepo}
}

func (s *paymentService) ListPayments(ctx context.Context, buyerID int64, limit, offset int) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list payments", Err: err}
	}
	return payments, nil
}

func (s *paymentService) AttachOrder(ctx context.Context, buyerID int64, paymentID, orderID uuid.UUID) error {
	p, err := s.paymentRepo.FindById(ctx, paymentID)
	if err != nil {
		return &domain.PersistenceError{Op: "find payment", Err: err}
	}
	if p == nil || p.BuyerID != buyerID {
		return ErrPaymentNotFound
	}

	o, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return &domain.PersistenceError{Op: "find order", Err: err}
	}
	if o == nil || o.BuyerID != buyerID {
		return ErrOrderNotFound
	}
	if o.PaymentID == nil || *o.PaymentID != p.ID {
		return &domain.ValidationError{Index: -1, Field: "orderId", Reason: "is not settled by this payment"}
	}

	if err := s.paymentRepo.UpdateOrderRef(ctx, paymentID, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPaymentNotFound
		}
		return &domain.PersistenceError{Op: "update payment order", Err: err}
	}
	return nil
}
