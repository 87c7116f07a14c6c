// Package httptransport wires the JSON API surface: domain reservation and
// transfer orchestration, payment checkout, and the inbound webhooks from
// the registrar and the payment processor.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nameclaim/internal/platform/middleware"
	"nameclaim/pkg/platform/httputil"
)

// RouterConfig carries the transport-level settings.
type RouterConfig struct {
	// AdminToken guards the operation admin routes. Empty fails closed.
	AdminToken string
}

// NewRouter assembles the full route table behind the shared middleware
// chain. Webhook routes sit inside the same chain: they need the request ID
// and access log like any other route, and signature checks happen in the
// handlers against the raw body.
func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/reserve-domain", h.handleReserveDomains)
	r.Post("/retry-transfer", h.handleRetryTransfer)
	r.Post("/handle-expired-checkout", h.handleExpiredCheckout)
	r.Get("/domain-status", h.handleDomainStatus)
	r.Post("/domain-status", h.handleDomainStatus)

	r.Post("/create-payment-intent", h.handleCreatePaymentIntent)
	r.Post("/verify-payment", h.handleVerifyPayment)

	r.Post("/webhooks/stripe", h.handlePaymentWebhook)
	r.Post("/webhooks/unstoppable", h.handleRegistrarWebhook)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdminToken(cfg.AdminToken, logger))
		admin.Post("/store-operation", h.handleStoreOperation)
		admin.Get("/store-operation", h.handleListOperations)
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
