package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"momo-checkout/internal/domain"
)

// Sandbox is an in-memory gateway. Payers either answer on their own after
// a delay (see WithAutoApproval) or are driven explicitly with Approve and
// Decline.
type Sandbox struct {
	mu      sync.RWMutex
	events  []Event
	charges map[string]CashInRequest
	timers  []*time.Timer

	approveAfter time.Duration
	approvalRate int // percent of charges the payer approves

	cashInErr   error
	eventsErr   error
	eventsCalls int
}

type SandboxOption func(*Sandbox)

// WithAutoApproval settles every charge after delay. rate is the percent
// chance the payer approves; the rest are declined. A negative delay
// leaves the charge unanswered forever.
func WithAutoApproval(delay time.Duration, rate int) SandboxOption {
	return func(s *Sandbox) {
		s.approveAfter = delay
		s.approvalRate = rate
	}
}

func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		charges:      make(map[string]CashInRequest),
		approveAfter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sandbox) CashIn(ctx context.Context, req CashInRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cashInErr != nil {
		return "", &domain.GatewayError{Op: "cashin", Err: s.cashInErr}
	}
	if req.Number == "" || !req.Amount.IsPositive() {
		return "", &domain.GatewayError{Op: "cashin", StatusCode: 400, Err: errors.New("number and positive amount required")}
	}

	ref := uuid.NewString()
	s.charges[ref] = req
	s.appendLocked(ref, EventCreated, StatusPending, req)

	if s.approveAfter >= 0 {
		approve := rand.IntN(100) < s.approvalRate
		s.timers = append(s.timers, time.AfterFunc(s.approveAfter, func() {
			if approve {
				s.Approve(ref)
			} else {
				s.Decline(ref)
			}
		}))
	}
	return ref, nil
}

// Events returns the feed newest first, like the provider does.
func (s *Sandbox) Events(ctx context.Context, offset, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventsCalls++
	if s.eventsErr != nil {
		return nil, &domain.GatewayError{Op: "events", Err: s.eventsErr}
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Approve emits a successful processed event for ref.
func (s *Sandbox) Approve(ref string) bool { return s.settle(ref, StatusSuccessful) }

// Decline emits a failed processed event for ref.
func (s *Sandbox) Decline(ref string) bool { return s.settle(ref, StatusFailed) }

func (s *Sandbox) settle(ref, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.charges[ref]
	if !ok {
		return false
	}
	s.appendLocked(ref, EventProcessed, status, req)
	return true
}

// Noise appends an unrelated processed event, pushing older ones down the feed.
func (s *Sandbox) Noise(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.appendLocked(uuid.NewString(), EventProcessed, StatusSuccessful, CashInRequest{})
	}
}

func (s *Sandbox) FailCashIn(err error) {
	s.mu.Lock()
	s.cashInErr = err
	s.mu.Unlock()
}

func (s *Sandbox) FailEvents(err error) {
	s.mu.Lock()
	s.eventsErr = err
	s.mu.Unlock()
}

func (s *Sandbox) Charges() map[string]CashInRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CashInRequest, len(s.charges))
	for k, v := range s.charges {
		out[k] = v
	}
	return out
}

func (s *Sandbox) EventsCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsCalls
}

// Close stops pending auto-approval timers.
func (s *Sandbox) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Sandbox) appendLocked(ref, kind, status string, req CashInRequest) {
	now := time.Now().UTC()
	ev := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: now,
		Data: EventData{
			Ref:      ref,
			Kind:     "CASHIN",
			Client:   req.Number,
			Amount:   req.Amount.InexactFloat64(),
			Provider: "sandbox",
			Status:   status,
		},
	}
	if kind == EventProcessed {
		ev.Data.ProcessedAt = now
	}
	s.events = append(s.events, ev)
}
