package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentOrderStatus string

const (
	PaymentOrderStatusPending PaymentOrderStatus = "PENDING"
	PaymentOrderStatusSuccess PaymentOrderStatus = "SUCCESS"
	PaymentOrderStatusFailed  PaymentOrderStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "RAZORPAY"
	PaymentMethodStripe   PaymentMethod = "STRIPE"
	PaymentMethodMock     PaymentMethod = "MOCK"
)

// AmountScale is the number of fractional digits kept for stored amounts.
const AmountScale = 2

// PaymentOrder is the record of a single payment attempt for a booking.
// Amount is fixed at creation and PaymentLinkID is assigned at most once.
type PaymentOrder struct {
	ID            int64
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentLinkID string
	UserID        int64
	BookingID     int64
	SalonID       int64
	Status        PaymentOrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPaymentOrder builds a PENDING order for the booking, rounding the total
// half-up to AmountScale places.
func NewPaymentOrder(userID int64, booking BookingSummary, method PaymentMethod) *PaymentOrder {
	return &PaymentOrder{
		Amount:        RoundAmount(booking.TotalPrice.Decimal),
		PaymentMethod: method,
		UserID:        userID,
		BookingID:     booking.ID,
		SalonID:       booking.SalonID,
		Status:        PaymentOrderStatusPending,
	}
}

// RoundAmount rounds half away from zero, which is half-up for the
// non-negative amounts accepted here.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(AmountScale)
}

func (o *PaymentOrder) IsPending() bool {
	return o.Status == PaymentOrderStatusPending
}

func (o *PaymentOrder) HasLink() bool {
	return o.PaymentLinkID != ""
}

func (s PaymentOrderStatus) IsTerminal() bool {
	return s == PaymentOrderStatusSuccess || s == PaymentOrderStatusFailed
}

// ParsePaymentMethod accepts the method name case-insensitively.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw))); m {
	case PaymentMethodRazorpay, PaymentMethodStripe, PaymentMethodMock:
		return m, nil
	}
	return "", NewValidationError("paymentMethod", "unsupported payment method")
}
