package payments_http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-payments/internal/app/payments"
)

func RegisterRoutes(r chi.Router, s payments.PaymentService, users UserDirectory, health HealthChecker, l *zap.Logger) {
	handler := NewPaymentHandler(s, users, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := health.PingContext(ctx); err != nil {
			l.Warn("Health check failed", zap.Error(err))
			ResponseJSON(w, http.StatusServiceUnavailable, false, "Database unavailable", nil, nil)
			return
		}
		ResponseSuccess(w, "Payments service is healthy", nil)
	})

	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/create", handler.CreatePaymentHandler)
		r.Patch("/proceed", handler.ProceedPaymentHandler)
		r.Post("/provider-callback", handler.ProviderCallbackHandler)
		r.Get("/link/{paymentLinkId}", handler.GetPaymentOrderByLinkHandler)
		r.Get("/{paymentOrderId}", handler.GetPaymentOrderHandler)
	})
}
