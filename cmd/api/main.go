package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelvaldez/creatorkit-backend/api/routes"
	checkoutsvc "github.com/angelvaldez/creatorkit-backend/internal/checkout"
	"github.com/angelvaldez/creatorkit-backend/internal/rewards"
	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	stripewebhook "github.com/angelvaldez/creatorkit-backend/internal/webhooks/stripe"
	"github.com/angelvaldez/creatorkit-backend/pkg/config"
	"github.com/angelvaldez/creatorkit-backend/pkg/db"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
	"github.com/angelvaldez/creatorkit-backend/pkg/metrics"
	"github.com/angelvaldez/creatorkit-backend/pkg/migrate"
	"github.com/angelvaldez/creatorkit-backend/pkg/redis"
	"github.com/angelvaldez/creatorkit-backend/pkg/stripe"
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	transactionsRepo := transactions.NewRepository(dbClient.DB())
	rewardsRepo := rewards.NewRepository(dbClient.DB())

	rewardService, err := rewards.NewService(rewardsRepo, transactionsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create rewards service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(transactionsRepo, stripeClient, cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(transactionsRepo, rewardService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard := stripewebhook.NewIdempotencyGuard(redisClient)

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			transactionsRepo,
			rewardService,
			stripeClient,
			webhookService,
			webhookGuard,
			paymentMetrics,
			registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
