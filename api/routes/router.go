package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sokpheng-dev/salapay-backend/api/controllers"
	webhookcontrollers "github.com/sokpheng-dev/salapay-backend/api/controllers/webhooks"
	"github.com/sokpheng-dev/salapay-backend/api/middleware"
	"github.com/sokpheng-dev/salapay-backend/internal/payments"
	"github.com/sokpheng-dev/salapay-backend/internal/payway"
	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/db"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
	"github.com/sokpheng-dev/salapay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	paymentsService *payments.Service,
	khqrService *payway.Service,
	pushbackProcessor *payway.Processor,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Gateway-facing surface. No idempotency middleware here: the
	// processor handles redelivery itself and must record every attempt.
	r.Post("/api/payway/webhook", webhookcontrollers.PaywayWebhook(pushbackProcessor, cfg.Payway, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/payments", controllers.CreatePayment(paymentsService, logg))
		r.Get("/payments/{paymentID}/status", controllers.PaymentStatus(paymentsService, logg))
		r.Post("/payments/{paymentID}/khqr", controllers.GenerateKHQR(paymentsService, khqrService, logg))
		r.Post("/payway/transactions/{tranID}/check", controllers.CheckPaywayTransaction(khqrService, logg))
	})

	return r
}
