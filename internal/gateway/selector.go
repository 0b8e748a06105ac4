package gateway

import "booking-payments/internal/domain"

// DefaultMockProviders are the provider names shown on mock checkout pages.
var DefaultMockProviders = []string{"webpay", "onepay", "mercadopago", "khipu", "flow"}

// ProviderSelector picks the provider name shown on a mock payment link.
type ProviderSelector interface {
	Select(method domain.PaymentMethod, orderID int64) string
}

// StableSelector maps the real methods to fixed names and spreads every
// other order over Providers by order id, so a given order always gets the
// same provider.
type StableSelector struct {
	Providers []string
}

func (s StableSelector) Select(method domain.PaymentMethod, orderID int64) string {
	switch method {
	case domain.PaymentMethodRazorpay:
		return "webpay"
	case domain.PaymentMethodStripe:
		return "onepay"
	}
	providers := s.Providers
	if len(providers) == 0 {
		providers = DefaultMockProviders
	}
	idx := orderID % int64(len(providers))
	if idx < 0 {
		idx = -idx
	}
	return providers[idx]
}

// FixedSelector always returns Provider.
type FixedSelector struct {
	Provider string
}

func (s FixedSelector) Select(domain.PaymentMethod, int64) string {
	return s.Provider
}

// NewProviderSelector returns a FixedSelector when fixed is set and a
// StableSelector over providers otherwise.
func NewProviderSelector(fixed string, providers []string) ProviderSelector {
	if fixed != "" {
		return FixedSelector{Provider: fixed}
	}
	return StableSelector{Providers: providers}
}
