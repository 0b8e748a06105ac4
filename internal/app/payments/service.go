package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"booking-payments/internal/domain"
	"booking-payments/internal/events"
	"booking-payments/internal/gateway"
	"booking-payments/internal/repository/payment_order_repo"
)

type PaymentService interface {
	CreateOrder(ctx context.Context, user *domain.User, booking domain.BookingSummary, method domain.PaymentMethod) (*PaymentLinkResponse, error)
	GetOrderByID(ctx context.Context, id int64) (*domain.PaymentOrder, error)
	GetOrderByLinkID(ctx context.Context, linkID string) (*domain.PaymentOrder, error)
	Confirm(ctx context.Context, order *domain.PaymentOrder, paymentID, paymentLinkID string) (bool, error)
	ConfirmByLink(ctx context.Context, paymentID, paymentLinkID string) (bool, error)
	ConfirmProviderCallback(ctx context.Context, orderID int64, providerStatus, providerPaymentID string) (bool, error)
}

type paymentService struct {
	db             domain.Querier
	tx             TxRunner
	orderRepo      payment_order_repo.PaymentOrderRepository
	gateways       GatewayRegistry
	notifier       events.NotificationProducer
	bookings       events.BookingEventProducer
	resolver       *OrderResolver
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewPaymentService(
	db domain.Querier,
	tx TxRunner,
	orderRepo payment_order_repo.PaymentOrderRepository,
	gateways GatewayRegistry,
	notifier events.NotificationProducer,
	bookings events.BookingEventProducer,
	resolver *OrderResolver,
	gatewayTimeout time.Duration,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:             db,
		tx:             tx,
		orderRepo:      orderRepo,
		gateways:       gateways,
		notifier:       notifier,
		bookings:       bookings,
		resolver:       resolver,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, user *domain.User, booking domain.BookingSummary, method domain.PaymentMethod) (*PaymentLinkResponse, error) {
	if err := validateCreateOrder(user, booking); err != nil {
		return nil, err
	}
	gw, err := s.gateways.For(method)
	if err != nil {
		return nil, err
	}

	order := domain.NewPaymentOrder(user.ID, booking, method)
	if err := s.orderRepo.CreateTx(ctx, s.db, order); err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}
	log := s.logger.With(zap.Int64("payment_order_id", order.ID), zap.Int64("booking_id", order.BookingID))
	log.Info("Payment order created",
		zap.String("amount", order.Amount.StringFixed(domain.AmountScale)),
		zap.String("payment_method", string(method)))

	linkCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	link, err := gw.CreateLink(linkCtx, *user, order.Amount, order.ID, method)
	cancel()
	if err != nil {
		err = gateway.WrapError(gw.Name(), "create payment link", err)
		log.Error("Payment link creation failed", zap.String("gateway", gw.Name()), zap.Error(err))
		s.abandon(ctx, order, log)
		return nil, err
	}

	if err := s.orderRepo.AttachLinkIDTx(ctx, s.db, order.ID, link.ID); err != nil {
		log.Error("Failed to store payment link id", zap.String("payment_link_id", link.ID), zap.Error(err))
		s.abandon(ctx, order, log)
		return nil, fmt.Errorf("attach payment link to order %d: %w", order.ID, err)
	}
	order.PaymentLinkID = link.ID

	log.Info("Payment link issued", zap.String("payment_link_id", link.ID), zap.String("gateway", gw.Name()))
	return &PaymentLinkResponse{PaymentLinkURL: link.URL, PaymentLinkID: link.ID}, nil
}

// abandon fails an order that never got a usable link so it cannot be paid.
func (s *paymentService) abandon(ctx context.Context, order *domain.PaymentOrder, log *zap.Logger) {
	applied, err := s.orderRepo.TransitionStatusTx(context.WithoutCancel(ctx), s.db, order.ID, domain.PaymentOrderStatusPending, domain.PaymentOrderStatusFailed)
	if err != nil {
		log.Error("Failed to mark abandoned payment order as FAILED", zap.Error(err))
		return
	}
	if applied {
		order.Status = domain.PaymentOrderStatusFailed
	}
}

func validateCreateOrder(user *domain.User, booking domain.BookingSummary) error {
	verr := &domain.ValidationError{}
	if user == nil || user.ID <= 0 {
		verr.Add("user", "user is required")
	}
	if booking.ID <= 0 {
		verr.Add("id", "booking id is required")
	}
	if booking.SalonID <= 0 {
		verr.Add("salonId", "salon id is required")
	}
	if !booking.TotalPrice.Valid {
		verr.Add("totalPrice", "total price is required")
	} else if booking.TotalPrice.Decimal.IsNegative() {
		verr.Add("totalPrice", "total price must not be negative")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *paymentService) GetOrderByID(ctx context.Context, id int64) (*domain.PaymentOrder, error) {
	if id <= 0 {
		return nil, domain.NewValidationError("paymentOrderId", "must be a positive integer")
	}
	return s.orderRepo.GetByIDTx(ctx, s.db, id)
}

func (s *paymentService) GetOrderByLinkID(ctx context.Context, linkID string) (*domain.PaymentOrder, error) {
	return s.resolver.Resolve(ctx, linkID)
}

// Confirm settles a PENDING order. It reports true only when this call moved
// the order to SUCCESS; every other outcome, including a lost race, is false.
func (s *paymentService) Confirm(ctx context.Context, order *domain.PaymentOrder, paymentID, paymentLinkID string) (bool, error) {
	if order == nil {
		return false, domain.NewValidationError("order", "payment order is required")
	}
	log := s.logger.With(
		zap.Int64("payment_order_id", order.ID),
		zap.String("payment_id", paymentID),
		zap.String("payment_link_id", paymentLinkID))

	if !order.IsPending() {
		log.Info("Payment order already processed", zap.String("status", string(order.Status)))
		return false, nil
	}

	gw, err := s.gateways.For(order.PaymentMethod)
	if err != nil {
		return s.fail(ctx, order, log, "no gateway for payment method", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	status, err := gw.FetchPaymentStatus(fetchCtx, paymentID)
	cancel()
	if err != nil {
		return s.fail(ctx, order, log, "provider status fetch failed", err)
	}
	if !status.Settled {
		return s.fail(ctx, order, log, "payment not captured", fmt.Errorf("provider status %q", status.Status))
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		succeeded := *order
		succeeded.Status = domain.PaymentOrderStatusSuccess

		if err := s.notifier.SendNotificationEvent(ctx, q, order.BookingID, order.UserID, order.SalonID); err != nil {
			return err
		}
		if err := s.bookings.SendBookingUpdateEvent(ctx, q, &succeeded); err != nil {
			return err
		}
		applied, err := s.orderRepo.TransitionStatusTx(ctx, q, order.ID, domain.PaymentOrderStatusPending, domain.PaymentOrderStatusSuccess)
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			log.Info("Payment order confirmed concurrently, nothing applied")
			return false, nil
		}
		return s.fail(ctx, order, log, "could not record successful payment", err)
	}

	order.Status = domain.PaymentOrderStatusSuccess
	log.Info("Payment order confirmed", zap.String("provider_status", status.Status))
	return true, nil
}

// fail moves the order to FAILED. Only a failure of that write is returned.
func (s *paymentService) fail(ctx context.Context, order *domain.PaymentOrder, log *zap.Logger, reason string, cause error) (bool, error) {
	log.Warn("Payment confirmation failed", zap.String("reason", reason), zap.Error(cause))

	applied, err := s.orderRepo.TransitionStatusTx(context.WithoutCancel(ctx), s.db, order.ID, domain.PaymentOrderStatusPending, domain.PaymentOrderStatusFailed)
	if err != nil {
		log.Error("Failed to mark payment order as FAILED", zap.Error(err))
		return false, fmt.Errorf("mark payment order %d failed: %w", order.ID, err)
	}
	if applied {
		order.Status = domain.PaymentOrderStatusFailed
	}
	return false, nil
}

func (s *paymentService) ConfirmByLink(ctx context.Context, paymentID, paymentLinkID string) (bool, error) {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(paymentID) == "" {
		verr.Add("paymentId", "payment id is required")
	}
	if strings.TrimSpace(paymentLinkID) == "" {
		verr.Add("paymentLinkId", "payment link id is required")
	}
	if !verr.Empty() {
		return false, verr
	}

	order, err := s.resolver.Resolve(ctx, paymentLinkID)
	if err != nil {
		return false, err
	}
	return s.Confirm(ctx, order, paymentID, paymentLinkID)
}

func (s *paymentService) ConfirmProviderCallback(ctx context.Context, orderID int64, providerStatus, providerPaymentID string) (bool, error) {
	verr := &domain.ValidationError{}
	if orderID <= 0 {
		verr.Add("orderId", "order id is required")
	}
	if !strings.EqualFold(strings.TrimSpace(providerStatus), ProviderApprovedStatus) {
		verr.Add("status", "payment not approved by provider")
	}
	if strings.TrimSpace(providerPaymentID) == "" {
		verr.Add("provider_payment_id", "provider payment id is required")
	}
	if !verr.Empty() {
		return false, verr
	}

	order, err := s.orderRepo.GetByIDTx(ctx, s.db, orderID)
	if err != nil {
		return false, err
	}
	return s.Confirm(ctx, order, providerPaymentID, providerPaymentID)
}
