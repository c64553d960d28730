package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

const PaymentMethodPaypack = "paypack"

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	BuyerID       int64           `json:"buyerId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID *string         `json:"transactionId,omitempty"`
	// OrderID points at the representative (first) order of the batch.
	OrderID   uuid.UUID     `json:"orderId"`
	Items     ItemsSnapshot `json:"items"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ItemsSnapshot is stored alongside the payment and lists every order of
// the batch plus the cart lines they were priced from.
type ItemsSnapshot struct {
	Orders   []SnapshotOrder `json:"orders"`
	Products []CartItem      `json:"products"`
}

type SnapshotOrder struct {
	OrderID uuid.UUID       `json:"id"`
	Amount  decimal.Decimal `json:"amount"`
}

func NewItemsSnapshot(orders []Order, cart []CartItem) ItemsSnapshot {
	snap := ItemsSnapshot{
		Orders:   make([]SnapshotOrder, 0, len(orders)),
		Products: append([]CartItem(nil), cart...),
	}
	for _, o := range orders {
		snap.Orders = append(snap.Orders, SnapshotOrder{OrderID: o.ID, Amount: o.TotalAmount})
	}
	return snap
}
