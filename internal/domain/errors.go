package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports malformed or unmatched checkout input. It is
// returned before anything is written or charged.
type ValidationError struct {
	Index  int // order detail index, -1 for request-level fields
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid checkout: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid order detail %d: %s %s", e.Index, e.Field, e.Reason)
}

// GatewayError means the provider refused a request or could not be reached.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// TimeoutError means no confirmation for Ref arrived before the deadline.
type TimeoutError struct {
	Ref   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("payment timeout: transaction %s not approved within %s", e.Ref, e.After)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PaymentFailedError is returned after a batch was compensated. Err is the
// GatewayError or TimeoutError that caused it.
type PaymentFailedError struct {
	Ref      string
	OrderIDs []uuid.UUID
	Err      error
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment failed for %d order(s): %v", len(e.OrderIDs), e.Err)
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }
