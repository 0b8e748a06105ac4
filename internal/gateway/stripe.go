package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"

	"booking-payments/internal/domain"
)

const StripeGatewayName = "stripe"

// stripeAPI is the slice of the Stripe client this gateway calls.
type stripeAPI interface {
	NewCheckoutSession(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
	GetCheckoutSession(id string, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
	GetPaymentIntent(id string, params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
}

type stripeSDK struct {
	api *stripeclient.API
}

func (s stripeSDK) NewCheckoutSession(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	return s.api.CheckoutSessions.New(params)
}

func (s stripeSDK) GetCheckoutSession(id string, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	return s.api.CheckoutSessions.Get(id, params)
}

func (s stripeSDK) GetPaymentIntent(id string, params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	return s.api.PaymentIntents.Get(id, params)
}

type StripeConfig struct {
	APIKey      string
	CallbackURL string
	Currency    string
}

// StripeGateway issues Stripe Checkout Sessions.
type StripeGateway struct {
	api         stripeAPI
	callbackURL string
	currency    string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return newStripeGateway(stripeSDK{api: stripeclient.New(cfg.APIKey, nil)}, cfg)
}

func newStripeGateway(api stripeAPI, cfg StripeConfig) *StripeGateway {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{
		api:         api,
		callbackURL: strings.TrimRight(cfg.CallbackURL, "/"),
		currency:    currency,
	}
}

func (g *StripeGateway) Name() string { return StripeGatewayName }

func (g *StripeGateway) CreateLink(ctx context.Context, user domain.User, amount decimal.Decimal, orderID int64, _ domain.PaymentMethod) (*Link, error) {
	ref := strconv.FormatInt(orderID, 10)
	params := &stripeapi.CheckoutSessionParams{
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(g.currency),
				UnitAmount: stripeapi.Int64(ToMinorUnits(amount)),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String("Salon booking payment #" + ref),
				},
			},
			Quantity: stripeapi.Int64(1),
		}},
		ClientReferenceID: stripeapi.String(ref),
		SuccessURL:        stripeapi.String(g.callbackURL + "/" + ref),
		CancelURL:         stripeapi.String(g.callbackURL + "/" + ref + "?cancelled=true"),
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": ref},
		},
	}
	if user.Email != "" {
		params.CustomerEmail = stripeapi.String(user.Email)
		params.PaymentIntentData.ReceiptEmail = stripeapi.String(user.Email)
	}
	params.AddMetadata("order_id", ref)
	params.Context = ctx

	session, err := g.api.NewCheckoutSession(params)
	if err != nil {
		return nil, mapStripeError("create checkout session", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, NewGatewayError(StripeGatewayName, CodeInvalidResponse, "checkout session without id or url", nil)
	}
	return &Link{ID: session.ID, URL: session.URL}, nil
}

// FetchPaymentStatus accepts either a checkout session id (cs_...) or a
// payment intent id.
func (g *StripeGateway) FetchPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	if strings.HasPrefix(paymentID, "cs_") {
		params := &stripeapi.CheckoutSessionParams{}
		params.Context = ctx
		session, err := g.api.GetCheckoutSession(paymentID, params)
		if err != nil {
			return nil, mapStripeError("get checkout session", err)
		}
		return &PaymentStatus{
			PaymentID: paymentID,
			Status:    string(session.PaymentStatus),
			Settled:   session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid,
		}, nil
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.GetPaymentIntent(paymentID, params)
	if err != nil {
		return nil, mapStripeError("get payment intent", err)
	}
	return &PaymentStatus{
		PaymentID: paymentID,
		Status:    string(intent.Status),
		Settled:   intent.Status == stripeapi.PaymentIntentStatusSucceeded,
	}, nil
}

func mapStripeError(op string, err error) error {
	var stripeErr *stripeapi.Error
	if !errors.As(err, &stripeErr) {
		return WrapError(StripeGatewayName, op, err)
	}
	msg := fmt.Sprintf("%s: %s", op, stripeErr.Msg)
	switch {
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return NewGatewayError(StripeGatewayName, CodeUnauthenticated, msg, err)
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return NewGatewayError(StripeGatewayName, CodeRateLimited, msg, err)
	case stripeErr.HTTPStatusCode >= 500:
		return NewGatewayError(StripeGatewayName, CodeProviderError, msg, err)
	default:
		return NewGatewayError(StripeGatewayName, CodeProviderRejected, msg, err)
	}
}
