package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"momo-checkout/internal/config"
	"momo-checkout/internal/database"
	"momo-checkout/internal/domain"
	"momo-checkout/internal/infrastructure/payment"
	"momo-checkout/internal/logging"
	"momo-checkout/internal/repo"
	"momo-checkout/internal/service"
	"momo-checkout/internal/worker"
)

// simulate runs a burst of concurrent checkouts against the sandbox gateway
// and prints what ended up in the database for each batch.
func main() {
	n := flag.Int("n", 20, "number of checkouts")
	rate := flag.Int("approve", 70, "percent of payers that approve")
	delay := flag.Duration("delay", 2*time.Second, "time before a payer answers")
	deadline := flag.Duration("deadline", 5*time.Second, "approval deadline")
	interval := flag.Duration("interval", 500*time.Millisecond, "poll interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New("warn")
	ctx := context.Background()

	db, err := database.NewPostgres(cfg.DB.DSN())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.ApplySchema(ctx, db); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	gateway := payment.NewSandbox(payment.WithAutoApproval(*delay, *rate))
	defer gateway.Close()

	orderRepo := repo.NewOrderRepo(db)
	checkout := service.NewCheckoutService(
		repo.NewTransactor(db),
		orderRepo,
		repo.NewPaymentRepo(db),
		gateway,
		worker.NewApprovalPoller(gateway, *deadline, *interval, worker.DefaultEventsLimit, log),
		service.CheckoutOptions{Environment: "development"},
		log,
	)

	fmt.Printf("--- STARTING SIMULATION (%d CHECKOUTS) ---\n", *n)
	results := make([]string, *n)
	var g errgroup.Group
	for i := 0; i < *n; i++ {
		g.Go(func() error {
			req := domain.CheckoutRequest{
				BuyerID:       int64(i + 1),
				ContactNumber: fmt.Sprintf("0788%06d", i),
				CartItems: []domain.CartItem{
					{ProductID: 1, Price: decimal.NewFromInt(1000)},
					{ProductID: 2, Price: decimal.NewFromInt(2500)},
				},
				OrderDetails: []domain.OrderDetail{
					{ProductID: 1, Quantity: 2, ShippingAddress: "KG 11 Ave", Number: "0788000000"},
					{ProductID: 2, Quantity: 1, ShippingAddress: "KG 11 Ave", Number: "0788000000"},
				},
			}
			res, err := checkout.SubmitCartCheckout(ctx, req)
			if err != nil {
				results[i] = fmt.Sprintf("[%d] FAILED: %v", i+1, err)
				return nil
			}

			// read back what the store holds for the batch
			orders, err := orderRepo.FindByIDs(ctx, res.OrderIDs)
			if err != nil {
				return err
			}
			statuses := make([]domain.OrderStatus, 0, len(orders))
			for _, o := range orders {
				statuses = append(statuses, o.Status)
			}
			results[i] = fmt.Sprintf("[%d] SUCCESS payment=%s orders=%v", i+1, res.PaymentID, statuses)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, line := range results {
		fmt.Println(line)
	}
	fmt.Printf("gateway charges: %d, event polls: %d\n", len(gateway.Charges()), gateway.EventsCalls())
}
