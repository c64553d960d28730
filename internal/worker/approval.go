package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/infrastructure/payment"
)

const (
	DefaultApprovalDeadline = 120 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultEventsLimit      = 100
)

// ApprovalPoller waits for the payer to confirm a cash-in by reading the
// gateway's event feed at a fixed interval.
type ApprovalPoller struct {
	gateway  payment.PaymentGateway
	deadline time.Duration
	interval time.Duration
	limit    int
	log      *slog.Logger
}

func NewApprovalPoller(
	gateway payment.PaymentGateway,
	deadline time.Duration,
	interval time.Duration,
	limit int,
	log *slog.Logger,
) *ApprovalPoller {
	if deadline <= 0 {
		deadline = DefaultApprovalDeadline
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	return &ApprovalPoller{
		gateway:  gateway,
		deadline: deadline,
		interval: interval,
		limit:    limit,
		log:      log,
	}
}

func (p *ApprovalPoller) Deadline() time.Duration { return p.deadline }

// Wait blocks until a processed event for ref shows up in the feed, the
// deadline passes, or ctx is cancelled. The deadline context and the ticker
// both die with this call; once the deadline fires no further poll is sent
// and the result of a poll still in flight is dropped.
func (p *ApprovalPoller) Wait(ctx context.Context, ref string) (*payment.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			return nil, p.stopped(ctx, ref, polls)
		case <-ticker.C:
		}

		polls++
		events, err := p.gateway.Events(ctx, 0, p.limit)
		if ctx.Err() != nil {
			return nil, p.stopped(ctx, ref, polls)
		}
		if err != nil {
			p.log.Warn("approval poll failed", "ref", ref, "poll", polls, "err", err)
			return nil, asGatewayError(err)
		}

		for i := range events {
			if !events[i].Processed(ref) {
				continue
			}
			ev := events[i]
			if ev.Failed() {
				p.log.Info("transaction rejected", "ref", ref, "poll", polls)
				return &ev, &domain.GatewayError{Op: "approval", Err: errors.New("transaction rejected by payer or provider")}
			}
			p.log.Info("transaction approved", "ref", ref, "poll", polls)
			return &ev, nil
		}
	}
}

func (p *ApprovalPoller) stopped(ctx context.Context, ref string, polls int) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.log.Info("approval deadline reached", "ref", ref, "polls", polls, "deadline", p.deadline)
		return &domain.TimeoutError{Ref: ref, After: p.deadline}
	}
	return ctx.Err()
}

func asGatewayError(err error) error {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &domain.GatewayError{Op: "events", Err: err}
}
