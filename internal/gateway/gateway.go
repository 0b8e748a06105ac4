package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"booking-payments/internal/domain"
)

// Link is a payable link issued by a provider.
type Link struct {
	ID  string
	URL string
}

// PaymentStatus is the provider's view of a payment.
type PaymentStatus struct {
	PaymentID string
	Status    string
	Settled   bool
}

// Gateway issues payment links and reports settlement for one provider.
type Gateway interface {
	Name() string
	CreateLink(ctx context.Context, user domain.User, amount decimal.Decimal, orderID int64, method domain.PaymentMethod) (*Link, error)
	FetchPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a 2-place major-unit amount to an integer count of
// minor units (cents, paise) without floating point.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return domain.RoundAmount(amount).Mul(hundred).IntPart()
}

// run executes fn and returns early when ctx is done. SDK calls that take no
// context are bounded this way; fn keeps running in the background.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
