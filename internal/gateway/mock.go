package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"booking-payments/internal/domain"
)

const (
	MockGatewayName = "mock"
	DefaultMockTag  = "MOCK_PAY"
)

// MockGateway issues links to a simulated checkout page. Every payment it
// is asked about counts as settled.
type MockGateway struct {
	baseURL  *url.URL
	tag      string
	selector ProviderSelector
	now      func() time.Time
}

type MockOption func(*MockGateway)

// WithClock replaces time.Now for link id generation.
func WithClock(now func() time.Time) MockOption {
	return func(g *MockGateway) { g.now = now }
}

func WithSelector(s ProviderSelector) MockOption {
	return func(g *MockGateway) { g.selector = s }
}

func WithTag(tag string) MockOption {
	return func(g *MockGateway) {
		if tag != "" {
			g.tag = tag
		}
	}
}

func NewMockGateway(baseURL string, opts ...MockOption) (*MockGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mock base url: %w", err)
	}
	g := &MockGateway{
		baseURL:  u,
		tag:      DefaultMockTag,
		selector: StableSelector{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *MockGateway) Name() string { return MockGatewayName }

func (g *MockGateway) CreateLink(ctx context.Context, user domain.User, amount decimal.Decimal, orderID int64, method domain.PaymentMethod) (*Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(MockGatewayName, "create link", err)
	}

	linkID := fmt.Sprintf("%s_%d_%d", g.tag, orderID, g.now().UnixMilli())

	u := *g.baseURL
	q := u.Query()
	q.Set("orderId", strconv.FormatInt(orderID, 10))
	q.Set("amount", domain.RoundAmount(amount).StringFixed(domain.AmountScale))
	q.Set("provider", g.selector.Select(method, orderID))
	q.Set("email", user.Email)
	q.Set("name", user.DisplayName())
	u.RawQuery = q.Encode()

	return &Link{ID: linkID, URL: u.String()}, nil
}

func (g *MockGateway) FetchPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(MockGatewayName, "fetch payment status", err)
	}
	return &PaymentStatus{PaymentID: paymentID, Status: "captured", Settled: true}, nil
}
