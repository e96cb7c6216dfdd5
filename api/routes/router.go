package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelvaldez/creatorkit-backend/api/controllers"
	webhookcontrollers "github.com/angelvaldez/creatorkit-backend/api/controllers/webhooks"
	"github.com/angelvaldez/creatorkit-backend/api/middleware"
	checkoutsvc "github.com/angelvaldez/creatorkit-backend/internal/checkout"
	rewardsvc "github.com/angelvaldez/creatorkit-backend/internal/rewards"
	"github.com/angelvaldez/creatorkit-backend/internal/transactions"
	stripewebhook "github.com/angelvaldez/creatorkit-backend/internal/webhooks/stripe"
	"github.com/angelvaldez/creatorkit-backend/pkg/config"
	"github.com/angelvaldez/creatorkit-backend/pkg/db"
	"github.com/angelvaldez/creatorkit-backend/pkg/logger"
	"github.com/angelvaldez/creatorkit-backend/pkg/metrics"
	"github.com/angelvaldez/creatorkit-backend/pkg/redis"
	"github.com/angelvaldez/creatorkit-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redis.Pinger,
	checkoutService checkoutsvc.Service,
	transactionsRepo transactions.Repository,
	rewardService rewardsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	pm *metrics.PaymentMetrics,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, pm, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", controllers.Checkout(checkoutService, pm, logg))
		r.Get("/transactions/{id}", controllers.GetTransaction(transactionsRepo, rewardService, logg))
		r.Get("/creators/{creatorID}/transactions", controllers.ListCreatorTransactions(transactionsRepo, logg))
		r.Get("/rewards/{token}", controllers.GetReward(rewardService, logg))
	})

	return r
}
