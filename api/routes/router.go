package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arjunmehra/stitchkart-backend/api/controllers"
	webhookcontrollers "github.com/arjunmehra/stitchkart-backend/api/controllers/webhooks"
	"github.com/arjunmehra/stitchkart-backend/api/middleware"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/internal/returns"
	"github.com/arjunmehra/stitchkart-backend/internal/shipping"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/config"
	"github.com/arjunmehra/stitchkart-backend/pkg/db"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	transitionsSvc transitions.Service,
	paymentsSvc payments.Service,
	shippingSvc shipping.Service,
	returnsSvc returns.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbPinger, redisClient, logg))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(paymentsSvc, logg))
		r.Post("/cashfree", webhookcontrollers.CashfreeWebhook(paymentsSvc, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(redisClient, logg),
		)

		r.Route("/items/{itemID}", func(r chi.Router) {
			r.Get("/transitions", controllers.ItemTransitions(transitionsSvc, logg))
			r.Post("/transitions", controllers.ApplyTransition(transitionsSvc, logg))
			r.Post("/return", controllers.RequestReturn(returnsSvc, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleAdmin), logg)).
				Post("/return/decision", controllers.DecideReturn(returnsSvc, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleAdmin), logg)).
				Post("/refund", controllers.RefundItem(returnsSvc, logg))
		})

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Post("/payments", controllers.CreatePaymentIntent(paymentsSvc, logg))
			r.Post("/cancel", controllers.CancelOrder(returnsSvc, logg))
			r.Get("/shipping", controllers.ShippingProgress(shippingSvc, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleAdmin), logg)).
				Post("/shipping/next-step", controllers.AdvanceShipping(shippingSvc, logg))
		})

		r.Route("/payments/{transactionID}", func(r chi.Router) {
			r.Post("/verify", controllers.VerifyPayment(paymentsSvc, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleAdmin), logg)).
				Post("/refund", controllers.RefundPayment(paymentsSvc, logg))
		})

		r.Route("/admin/payment-config", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Get("/", controllers.GetPaymentConfig(paymentsSvc.Config(), logg))
			r.Put("/", controllers.UpdatePaymentConfig(paymentsSvc.Config(), logg))
			r.Post("/reload", controllers.ReloadPaymentConfig(paymentsSvc.Config(), logg))
		})
	})

	return r
}
