package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"momo-checkout/internal/service"
)

// Healther reports datastore health for /health.
type Healther interface {
	Health() map[string]string
}

type Server struct {
	port        int
	corsOrigins []string
	db          Healther
	checkout    service.CheckoutService
	payments    service.PaymentService
	log         *slog.Logger
}

type Options struct {
	Port        int
	CORSOrigins []string
	// ApprovalDeadline is the longest a checkout request may wait for the
	// payer; the write timeout is sized from it.
	ApprovalDeadline time.Duration
}

func NewServer(
	opts Options,
	db Healther,
	checkout service.CheckoutService,
	payments service.PaymentService,
	log *slog.Logger,
) *http.Server {
	s := &Server{
		port:        opts.Port,
		corsOrigins: opts.CORSOrigins,
		db:          db,
		checkout:    checkout,
		payments:    payments,
		log:         log,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: opts.ApprovalDeadline + 30*time.Second,
	}
}
