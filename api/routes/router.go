package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-engine/api/controllers"
	"github.com/angelmondragon/settlement-engine/api/middleware"
	"github.com/angelmondragon/settlement-engine/internal/checkout"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/internal/orders"
	"github.com/angelmondragon/settlement-engine/internal/payments"
	"github.com/angelmondragon/settlement-engine/pkg/config"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/redis"
)

// RouterParams carries the collaborators mounted on the HTTP surface.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Counter     middleware.WindowCounter
	Gatherer    prometheus.Gatherer
	Checkout    checkout.Service
	Payments    payments.Service
	Escrow      escrow.Service
	Orders      orders.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	idempotent := middleware.Idempotency(p.Idempotency, logg)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleBuyer))
			r.Use(middleware.RateLimit(limiter, logg))

			r.Post("/checkout/quote", controllers.CheckoutQuote(p.Checkout, logg))
			r.Group(func(r chi.Router) {
				r.Use(idempotent)
				r.Post("/checkout/orders", controllers.CheckoutPlaceOrder(p.Checkout, p.Payments, logg))
				r.With(middleware.WindowLimit(p.Counter, "payments-verify", cfg.RateLimit.VerifyPerWindow, cfg.RateLimit.VerifyWindow, logg)).
					Post("/payments/verify", controllers.PaymentVerify(p.Payments, logg))
				r.Post("/payments/{attemptId}/cancel", controllers.PaymentCancel(p.Payments, logg))
				r.Post("/payments/{attemptId}/fail", controllers.PaymentFail(p.Payments, logg))
			})
		})

		r.Route("/admin/escrow", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Get("/", controllers.AdminEscrowList(p.Escrow, logg))
			r.Get("/{escrowId}", controllers.AdminEscrowDetail(p.Escrow, logg))
			r.Group(func(r chi.Router) {
				r.Use(idempotent)
				r.Post("/{escrowId}/approve", controllers.AdminEscrowApprove(p.Escrow, logg))
				r.Post("/{escrowId}/refund", controllers.AdminEscrowRefund(p.Escrow, logg))
				r.Post("/{escrowId}/cancel", controllers.AdminEscrowCancel(p.Escrow, logg))
				r.Post("/{escrowId}/dispute", controllers.AdminEscrowDispute(p.Escrow, logg))
				r.Post("/{escrowId}/resolve", controllers.AdminEscrowResolve(p.Escrow, logg))
			})
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleService, enums.RoleAdmin))
			r.Post("/suborders/{subOrderId}/delivered", controllers.SubOrderDelivered(p.Orders, logg))
			r.Post("/orders/{orderId}/cod-collected", controllers.OrderCODCollected(p.Orders, logg))
			r.With(idempotent).Post("/orders/{orderId}/cancel", controllers.OrderCancel(p.Orders, logg))
		})
	})

	return r
}
