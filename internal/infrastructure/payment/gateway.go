package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCreated   = "transaction:created"
	EventProcessed = "transaction:processed"

	StatusPending    = "pending"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// PaymentGateway is the mobile-money provider seen by the checkout saga.
// CashIn only submits the charge; the outcome is read later from Events.
type PaymentGateway interface {
	CashIn(ctx context.Context, req CashInRequest) (string, error)
	Events(ctx context.Context, offset, limit int) ([]Event, error)
}

type CashInRequest struct {
	Number      string
	Amount      decimal.Decimal
	Environment string
}

type Event struct {
	ID        string    `json:"event_id"`
	Kind      string    `json:"event_kind"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	Ref         string    `json:"ref"`
	Kind        string    `json:"kind"`
	Client      string    `json:"client"`
	Amount      float64   `json:"amount"`
	Provider    string    `json:"provider"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Processed reports whether the event is the final confirmation for ref.
func (e Event) Processed(ref string) bool {
	return e.Kind == EventProcessed && e.Data.Ref == ref
}

func (e Event) Failed() bool {
	return e.Data.Status == StatusFailed
}
