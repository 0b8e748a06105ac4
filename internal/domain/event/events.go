package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypePaymentNotification = "payment.notification"
	TypeBookingPaid         = "booking.payment_updated"
)

// PaymentNotificationEvent asks the notification service to tell the
// customer and salon about a successful payment.
type PaymentNotificationEvent struct {
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id"`
	SalonID   int64     `json:"salon_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingPaymentUpdatedEvent tells the booking service the payment order
// behind a booking reached a terminal status.
type BookingPaymentUpdatedEvent struct {
	PaymentOrderID int64           `json:"payment_order_id"`
	BookingID      int64           `json:"booking_id"`
	UserID         int64           `json:"user_id"`
	SalonID        int64           `json:"salon_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentLinkID  string          `json:"payment_link_id"`
	Status         string          `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
}

// PaymentConfirmationMessage is consumed from the confirmations topic.
type PaymentConfirmationMessage struct {
	PaymentID     string `json:"payment_id"`
	PaymentLinkID string `json:"payment_link_id"`
}
