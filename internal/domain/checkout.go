package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is the price snapshot the buyer saw in their cart.
type CartItem struct {
	ProductID int64           `json:"productId"`
	Price     decimal.Decimal `json:"price"`
}

type OrderDetail struct {
	ProductID       int64  `json:"productID"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shippingAddress"`
	Number          string `json:"number"`
}

type CheckoutRequest struct {
	BuyerID       int64
	ContactNumber string
	// TotalAmount is the amount the client expects to be charged. Zero means
	// "not provided"; otherwise it must equal the batch total.
	TotalAmount  decimal.Decimal
	CartItems    []CartItem
	OrderDetails []OrderDetail
}

type CheckoutResult struct {
	PaymentID     uuid.UUID   `json:"paymentId"`
	TransactionID string      `json:"transactionId"`
	OrderIDs      []uuid.UUID `json:"orderIds"`
}

// BatchState tracks one checkout batch through the saga.
type BatchState string

const (
	BatchCreated  BatchState = "created"
	BatchCharging BatchState = "charging"
	BatchApproved BatchState = "approved"
	BatchSettled  BatchState = "settled"
	BatchTimeout  BatchState = "timeout"
	BatchRejected BatchState = "rejected"
	BatchFailed   BatchState = "failed"
)

func (s BatchState) Terminal() bool {
	return s == BatchSettled || s == BatchFailed
}
