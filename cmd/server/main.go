package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"momo-checkout/internal/config"
	"momo-checkout/internal/database"
	"momo-checkout/internal/infrastructure/payment"
	"momo-checkout/internal/logging"
	"momo-checkout/internal/repo"
	"momo-checkout/internal/server"
	"momo-checkout/internal/service"
	"momo-checkout/internal/tracing"
	"momo-checkout/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if cfg.Paypack.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init("momo-checkout", cfg.TracesExporter, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := database.New(cfg.DB, log)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := repo.NewOrderRepo(db.DB())
	paymentRepo := repo.NewPaymentRepo(db.DB())
	gateway := payment.NewPaypackGateway(payment.PaypackConfig{
		BaseURL:      cfg.Paypack.BaseURL,
		ClientID:     cfg.Paypack.ClientID,
		ClientSecret: cfg.Paypack.ClientSecret,
		Timeout:      cfg.Paypack.Timeout,
	})
	poller := worker.NewApprovalPoller(gateway, cfg.Approval.Deadline, cfg.Approval.PollInterval, cfg.Approval.EventsLimit, log)

	checkout := service.NewCheckoutService(
		repo.NewTransactor(db.DB()),
		orderRepo,
		paymentRepo,
		gateway,
		poller,
		service.CheckoutOptions{Environment: cfg.Paypack.Environment, StoreTimeout: cfg.StoreTimeout},
		log,
	)
	payments := service.NewPaymentService(orderRepo, paymentRepo)

	if cfg.Reconcile.Interval > 0 {
		rw := worker.NewReconciliationWorker(repo.NewTransactor(db.DB()), orderRepo, cfg.Reconcile.Interval, cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize, log)
		go rw.Run(ctx)
	}

	srv := server.NewServer(server.Options{
		Port:             cfg.Port,
		CORSOrigins:      cfg.CORSOrigins,
		ApprovalDeadline: cfg.Approval.Deadline,
	}, db, checkout, payments, log)

	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	// in-flight checkouts may still be waiting on their payer
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Approval.Deadline+cfg.StoreTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("server shutdown complete")
}
