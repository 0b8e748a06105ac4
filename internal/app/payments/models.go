package payments

import (
	"context"

	"booking-payments/internal/domain"
	"booking-payments/internal/gateway"
)

// PaymentLinkResponse is returned to the caller once the link is stored.
type PaymentLinkResponse struct {
	PaymentLinkURL string `json:"payment_link_url"`
	PaymentLinkID  string `json:"payment_link_id"`
}

// ProviderApprovedStatus is the only callback status that confirms a payment.
const ProviderApprovedStatus = "approved"

// TxRunner runs fn in a transaction that commits when fn returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error
}

// GatewayRegistry picks the gateway for a payment method.
type GatewayRegistry interface {
	For(method domain.PaymentMethod) (gateway.Gateway, error)
}
