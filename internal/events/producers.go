package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-payments/internal/domain"
	"booking-payments/internal/domain/event"
)

// NotificationProducer announces a successful payment to the notification
// service. The event is written through q so it commits with the caller's
// transaction.
type NotificationProducer interface {
	SendNotificationEvent(ctx context.Context, q domain.Querier, bookingID, userID, salonID int64) error
}

// BookingEventProducer tells the booking service about a payment outcome.
type BookingEventProducer interface {
	SendBookingUpdateEvent(ctx context.Context, q domain.Querier, order *domain.PaymentOrder) error
}

type OutboxWriter interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
}

type Topics struct {
	Notification string
	Booking      string
}

// OutboxProducer implements both producers on top of the outbox table.
type OutboxProducer struct {
	outbox OutboxWriter
	topics Topics
	now    func() time.Time
	logger *zap.Logger
}

func NewOutboxProducer(outbox OutboxWriter, topics Topics, logger *zap.Logger) *OutboxProducer {
	return &OutboxProducer{
		outbox: outbox,
		topics: topics,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (p *OutboxProducer) SendNotificationEvent(ctx context.Context, q domain.Querier, bookingID, userID, salonID int64) error {
	now := p.now()
	payload, err := json.Marshal(event.PaymentNotificationEvent{
		BookingID: bookingID,
		UserID:    userID,
		SalonID:   salonID,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	msg := &domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateID:   strconv.FormatInt(bookingID, 10),
		AggregateType: "booking",
		MessageType:   event.TypePaymentNotification,
		Topic:         p.topics.Notification,
		Key:           strconv.FormatInt(bookingID, 10),
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}
	if err := p.outbox.CreateMessageTx(ctx, q, msg); err != nil {
		return fmt.Errorf("enqueue notification event for booking %d: %w", bookingID, err)
	}
	p.logger.Debug("Notification event enqueued", zap.String("message_id", msg.ID), zap.Int64("booking_id", bookingID))
	return nil
}

func (p *OutboxProducer) SendBookingUpdateEvent(ctx context.Context, q domain.Querier, order *domain.PaymentOrder) error {
	now := p.now()
	payload, err := json.Marshal(event.BookingPaymentUpdatedEvent{
		PaymentOrderID: order.ID,
		BookingID:      order.BookingID,
		UserID:         order.UserID,
		SalonID:        order.SalonID,
		Amount:         order.Amount,
		PaymentMethod:  string(order.PaymentMethod),
		PaymentLinkID:  order.PaymentLinkID,
		Status:         string(order.Status),
		Timestamp:      now,
	})
	if err != nil {
		return fmt.Errorf("marshal booking update event: %w", err)
	}

	msg := &domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateID:   strconv.FormatInt(order.ID, 10),
		AggregateType: domain.AggregateTypePaymentOrder,
		MessageType:   event.TypeBookingPaid,
		Topic:         p.topics.Booking,
		Key:           strconv.FormatInt(order.BookingID, 10),
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}
	if err := p.outbox.CreateMessageTx(ctx, q, msg); err != nil {
		return fmt.Errorf("enqueue booking update event for payment order %d: %w", order.ID, err)
	}
	p.logger.Debug("Booking update event enqueued", zap.String("message_id", msg.ID), zap.Int64("payment_order_id", order.ID))
	return nil
}
