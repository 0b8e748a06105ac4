package gateway

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"booking-payments/internal/domain"
)

const (
	ModeMock = "mock"
	ModeLive = "live"
)

type RegistryConfig struct {
	Mode string

	MockBaseURL       string
	MockLinkTag       string
	MockProviders     []string
	MockFixedProvider string

	CallbackURL string
	Currency    string

	StripeAPIKey      string
	RazorpayKeyID     string
	RazorpayKeySecret string
}

// Registry picks the gateway that serves a payment method.
type Registry struct {
	byMethod map[domain.PaymentMethod]Gateway
}

// NewRegistryFromGateways is used when the gateways are built elsewhere.
func NewRegistryFromGateways(byMethod map[domain.PaymentMethod]Gateway) *Registry {
	return &Registry{byMethod: byMethod}
}

// NewRegistry wires the configured gateways. In mock mode every method is
// served by the mock; in live mode Stripe and Razorpay are real when their
// credentials are present and fall back to the mock otherwise.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	mock, err := NewMockGateway(cfg.MockBaseURL,
		WithTag(cfg.MockLinkTag),
		WithSelector(NewProviderSelector(cfg.MockFixedProvider, cfg.MockProviders)),
		WithClock(time.Now),
	)
	if err != nil {
		return nil, err
	}

	r := &Registry{byMethod: map[domain.PaymentMethod]Gateway{
		domain.PaymentMethodMock: mock,
	}}

	switch cfg.Mode {
	case ModeMock:
		r.byMethod[domain.PaymentMethodStripe] = mock
		r.byMethod[domain.PaymentMethodRazorpay] = mock
	case ModeLive:
		if cfg.StripeAPIKey != "" {
			r.byMethod[domain.PaymentMethodStripe] = NewStripeGateway(StripeConfig{
				APIKey:      cfg.StripeAPIKey,
				CallbackURL: cfg.CallbackURL,
				Currency:    cfg.Currency,
			})
		}
		if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
			r.byMethod[domain.PaymentMethodRazorpay] = NewRazorpayGateway(RazorpayConfig{
				KeyID:       cfg.RazorpayKeyID,
				KeySecret:   cfg.RazorpayKeySecret,
				CallbackURL: cfg.CallbackURL,
				Currency:    cfg.Currency,
			})
		}
		for _, method := range []domain.PaymentMethod{domain.PaymentMethodStripe, domain.PaymentMethodRazorpay} {
			if _, ok := r.byMethod[method]; !ok {
				logger.Warn("No provider credentials for payment method, using mock gateway",
					zap.String("method", string(method)))
				r.byMethod[method] = mock
			}
		}
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}

	for method, gw := range r.byMethod {
		logger.Info("Payment gateway registered",
			zap.String("method", string(method)),
			zap.String("gateway", gw.Name()))
	}
	return r, nil
}

// For returns the gateway for method, or a validation error when no gateway
// is configured for it.
func (r *Registry) For(method domain.PaymentMethod) (Gateway, error) {
	gw, ok := r.byMethod[method]
	if !ok {
		return nil, domain.NewValidationError("paymentMethod", fmt.Sprintf("payment method %s is not available", method))
	}
	return gw, nil
}
