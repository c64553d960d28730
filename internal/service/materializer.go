package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"momo-checkout/internal/domain"
)

const moneyScale = 2

// Materialize turns checkout lines into pending orders, one per detail and
// in the same order. Prices come from the cart snapshot the buyer saw; the
// catalog is not consulted. Every line is checked before any order is built.
func Materialize(buyerID int64, cart []domain.CartItem, details []domain.OrderDetail, now time.Time) ([]domain.Order, error) {
	if buyerID <= 0 {
		return nil, &domain.ValidationError{Index: -1, Field: "buyerId", Reason: "is required"}
	}
	if len(details) == 0 {
		return nil, &domain.ValidationError{Index: -1, Field: "orderDetails", Reason: "must not be empty"}
	}

	prices := make([]decimal.Decimal, len(details))
	for i, d := range details {
		switch {
		case d.ProductID <= 0:
			return nil, &domain.ValidationError{Index: i, Field: "productID", Reason: "is required"}
		case d.Quantity <= 0:
			return nil, &domain.ValidationError{Index: i, Field: "quantity", Reason: "must be positive"}
		case strings.TrimSpace(d.ShippingAddress) == "":
			return nil, &domain.ValidationError{Index: i, Field: "shippingAddress", Reason: "is required"}
		case strings.TrimSpace(d.Number) == "":
			return nil, &domain.ValidationError{Index: i, Field: "number", Reason: "is required"}
		}
		price, ok := cartPrice(cart, d.ProductID)
		if !ok {
			return nil, &domain.ValidationError{Index: i, Field: "productID", Reason: "has no matching cart item"}
		}
		if price.IsNegative() {
			return nil, &domain.ValidationError{Index: i, Field: "price", Reason: "must not be negative"}
		}
		// amounts are stored as NUMERIC(12,2)
		if !price.Equal(price.Round(moneyScale)) {
			return nil, &domain.ValidationError{Index: i, Field: "price", Reason: "has more than 2 decimal places"}
		}
		prices[i] = price
	}

	now = now.UTC()
	orders := make([]domain.Order, 0, len(details))
	for i, d := range details {
		orders = append(orders, domain.Order{
			ID:              uuid.New(),
			BuyerID:         buyerID,
			ProductID:       d.ProductID,
			Quantity:        d.Quantity,
			TotalAmount:     prices[i].Mul(decimal.NewFromInt(int64(d.Quantity))),
			ShippingAddress: d.ShippingAddress,
			ContactNumber:   d.Number,
			Status:          domain.OrderPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return orders, nil
}

// cartPrice returns the price of the first cart item for productID.
func cartPrice(cart []domain.CartItem, productID int64) (decimal.Decimal, bool) {
	for _, item := range cart {
		if item.ProductID == productID {
			return item.Price, true
		}
	}
	return decimal.Zero, false
}
