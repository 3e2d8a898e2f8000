package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/settlement-engine/internal/coupons"
	"github.com/angelmondragon/settlement-engine/internal/cron"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/ledger"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/internal/shipping"
	"github.com/angelmondragon/settlement-engine/internal/totals"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/db"
	"github.com/angelmondragon/settlement-engine/pkg/instance"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/metrics"
	"github.com/angelmondragon/settlement-engine/pkg/migrate"
	"github.com/angelmondragon/settlement-engine/pkg/outbox"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
	"github.com/angelmondragon/settlement-engine/pkg/redislock"
)

const lockKeyFormat = "stl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := redislock.New(redisClient, lockKey(cfg.App.Env), cfg.Escrow.SweepInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Escrow.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	publisher := outbox.NewService(outboxRepo, logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	commission, err := escrow.NewCommissionPolicy(cfg.Commission)
	if err != nil {
		return nil, err
	}
	trigger, err := escrow.NewApprovalTrigger(cfg.Escrow)
	if err != nil {
		return nil, err
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
		return nil, err
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(dbClient.DB()),
		DB:     dbClient,
		Escrow: escrowSvc,
		Outbox: publisher,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}
	// Expiry never prices a checkout, so shipping estimates are not wired here.
	calculator := totals.NewCalculator(
		coupons.NewEngine(coupons.NewRepository(dbClient.DB())),
		shipping.NewResolver(nil, cfg.Shipping.PickupPincode, logg),
		cfg.Tax.GSTRate,
	)
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		DB:         dbClient,
		Repo:       payments.NewRepository(dbClient.DB()),
		Orders:     ordersSvc,
		Calculator: calculator,
		Currency:   cfg.Tax.Currency,
		Metrics:    settlementMetrics,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	sweep, err := cron.NewEscrowSweepJob(cron.EscrowSweepJobParams{
		Escrow:    escrowSvc,
		BatchSize: cfg.Escrow.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewAttemptExpiryJob(cron.AttemptExpiryJobParams{
		Payments:  paymentsSvc,
		TTL:       cfg.Gateway.AttemptTTL,
		BatchSize: cfg.Escrow.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(sweep, expiry, retention)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
