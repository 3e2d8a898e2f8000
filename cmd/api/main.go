package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-engine/api/routes"
	"github.com/angelmondragon/settlement-engine/internal/cart"
	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/coupons"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/ledger"
	"github.com/angelmondragon/settlement-engine/internal/notifications"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/gateway"
	"github.com/angelmondragon/settlement-engine/pkg/instance"
	"github.com/angelmondragon/settlement-engine/pkg/invoicing"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/shipestimate"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		fatal(logg, "failed to create ledger service", err)
	}
	commission, err := escrow.NewCommissionPolicy(cfg.Commission)
	if err != nil {
		fatal(logg, "failed to build commission policy", err)
	}
	trigger, err := escrow.NewApprovalTrigger(cfg.Escrow)
	if err != nil {
		fatal(logg, "failed to build approval trigger", err)
	}
	escrowSvc, err := escrow.NewService(escrow.ServiceParams{
		DB:         dbClient,
		Repo:       escrow.NewRepository(dbClient.DB()),
		Ledger:     ledgerSvc,
		Outbox:     publisher,
		Commission: commission,
		Trigger:    trigger,
		Locks:      redisClient,
		LockTTL:    cfg.Escrow.LockTTL,
		Metrics:    settlementMetrics,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "failed to create escrow service", err)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Escrow: escrowSvc,
		Outbox: publisher,
		Logger: logg,
	})
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}

	var estimator shipping.Estimator
	if client, err := shipestimate.NewClient(cfg.Shipping); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "shipping estimator disabled, quotes stay pending")
	} else {
		estimator = client
	}
	calculator := totals.NewCalculator(
		coupons.NewEngine(coupons.NewRepository(dbClient.DB())),
		shipping.NewResolver(estimator, cfg.Shipping.PickupPincode, logg),
		cfg.Tax.GSTRate,
	)

	checkoutSvc, err := checkout.NewService(checkout.NewRepository(dbClient.DB()), calculator, logg)
	if err != nil {
		fatal(logg, "failed to create checkout service", err)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(dbClient.DB()), logg)
	if err != nil {
		fatal(logg, "failed to create cart service", err)
	}
	notifier, err := notifications.NewDispatcher(dbClient, publisher, logg)
	if err != nil {
		fatal(logg, "failed to create notification dispatcher", err)
	}

	paymentParams := payments.ServiceParams{
		DB:         dbClient,
		Repo:       payments.NewRepository(dbClient.DB()),
		Orders:     ordersSvc,
		Calculator: calculator,
		Guard:      redisClient,
		GuardTTL:   cfg.Gateway.VerificationTTL,
		Cart:       cartSvc,
		Notifier:   notifier,
		Currency:   cfg.Tax.Currency,
		Metrics:    settlementMetrics,
		Logger:     logg,
	}
	if client, err := gateway.NewClient(cfg.Gateway); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "payment gateway disabled, only cash on delivery is available")
	} else {
		paymentParams.Gateway = client
	}
	if client, err := invoicing.NewClient(cfg.Invoice); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "invoice renderer disabled")
	} else {
		paymentParams.Invoices = client
	}
	paymentsSvc, err := payments.NewService(paymentParams)
	if err != nil {
		fatal(logg, "failed to create payments service", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Counter:     redisClient,
			Gatherer:    prometheus.DefaultGatherer,
			Checkout:    checkoutSvc,
			Payments:    paymentsSvc,
			Escrow:      escrowSvc,
			Orders:      ordersSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shutting down gracefully")
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
