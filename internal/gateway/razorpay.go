package gateway

import (
	"context"
	"strconv"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"

	"booking-payments/internal/domain"
)

const RazorpayGatewayName = "razorpay"

// razorpayAPI is the slice of the Razorpay client this gateway calls.
type razorpayAPI interface {
	CreatePaymentLink(data map[string]interface{}) (map[string]interface{}, error)
	FetchPayment(id string) (map[string]interface{}, error)
}

type razorpaySDK struct {
	client *razorpay.Client
}

func (s razorpaySDK) CreatePaymentLink(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.PaymentLink.Create(data, nil)
}

func (s razorpaySDK) FetchPayment(id string) (map[string]interface{}, error) {
	return s.client.Payment.Fetch(id, nil, nil)
}

type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	CallbackURL string
	Currency    string
}

// RazorpayGateway issues Razorpay Payment Links.
type RazorpayGateway struct {
	api         razorpayAPI
	callbackURL string
	currency    string
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	return newRazorpayGateway(razorpaySDK{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)}, cfg)
}

func newRazorpayGateway(api razorpayAPI, cfg RazorpayConfig) *RazorpayGateway {
	currency := strings.ToUpper(cfg.Currency)
	if currency == "" {
		currency = "INR"
	}
	return &RazorpayGateway{
		api:         api,
		callbackURL: strings.TrimRight(cfg.CallbackURL, "/"),
		currency:    currency,
	}
}

func (g *RazorpayGateway) Name() string { return RazorpayGatewayName }

func (g *RazorpayGateway) CreateLink(ctx context.Context, user domain.User, amount decimal.Decimal, orderID int64, _ domain.PaymentMethod) (*Link, error) {
	ref := strconv.FormatInt(orderID, 10)
	data := map[string]interface{}{
		"amount":       ToMinorUnits(amount),
		"currency":     g.currency,
		"reference_id": ref,
		"description":  "Salon booking payment #" + ref,
		"customer": map[string]interface{}{
			"name":  user.DisplayName(),
			"email": user.Email,
		},
		"notify": map[string]interface{}{
			"email": user.Email != "",
			"sms":   false,
		},
		"reminder_enable": true,
		"callback_url":    g.callbackURL + "/" + ref,
		"callback_method": "get",
	}

	body, err := run(ctx, func() (map[string]interface{}, error) {
		return g.api.CreatePaymentLink(data)
	})
	if err != nil {
		return nil, WrapError(RazorpayGatewayName, "create payment link", err)
	}

	id, _ := body["id"].(string)
	shortURL, _ := body["short_url"].(string)
	if id == "" || shortURL == "" {
		return nil, NewGatewayError(RazorpayGatewayName, CodeInvalidResponse, "payment link without id or short_url", nil)
	}
	return &Link{ID: id, URL: shortURL}, nil
}

func (g *RazorpayGateway) FetchPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	body, err := run(ctx, func() (map[string]interface{}, error) {
		return g.api.FetchPayment(paymentID)
	})
	if err != nil {
		return nil, WrapError(RazorpayGatewayName, "fetch payment", err)
	}
	status, _ := body["status"].(string)
	if status == "" {
		return nil, NewGatewayError(RazorpayGatewayName, CodeInvalidResponse, "payment without status", nil)
	}
	return &PaymentStatus{
		PaymentID: paymentID,
		Status:    status,
		Settled:   status == "captured",
	}, nil
}
