package payments_http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"booking-payments/internal/app/payments"
	"booking-payments/internal/domain"
)

// UserDirectory resolves the caller's Authorization header to a user.
type UserDirectory interface {
	GetUserFromToken(ctx context.Context, authorization string) (*domain.User, error)
}

// HealthChecker is satisfied by *sql.DB.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type PaymentHandler struct {
	service  payments.PaymentService
	users    UserDirectory
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, users UserDirectory, l *zap.Logger) *PaymentHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PaymentHandler{service: s, users: users, validate: v, logger: l}
}

type CreatePaymentRequest struct {
	ID         int64               `json:"id" validate:"required,gt=0"`
	SalonID    int64               `json:"salonId" validate:"required,gt=0"`
	TotalPrice decimal.NullDecimal `json:"totalPrice"`
}

type ProviderCallbackRequest struct {
	OrderID           int64  `json:"orderId" validate:"required,gt=0"`
	Provider          string `json:"provider"`
	Status            string `json:"status" validate:"required"`
	ProviderPaymentID string `json:"provider_payment_id" validate:"required"`
}

type PaymentOrderResponse struct {
	ID            int64     `json:"id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentLinkID string    `json:"payment_link_id,omitempty"`
	UserID        int64     `json:"user_id"`
	BookingID     int64     `json:"booking_id"`
	SalonID       int64     `json:"salon_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ConfirmationResponse struct {
	Applied bool `json:"applied"`
}

func toOrderResponse(o *domain.PaymentOrder) PaymentOrderResponse {
	return PaymentOrderResponse{
		ID:            o.ID,
		Amount:        o.Amount.StringFixed(domain.AmountScale),
		PaymentMethod: string(o.PaymentMethod),
		PaymentLinkID: o.PaymentLinkID,
		UserID:        o.UserID,
		BookingID:     o.BookingID,
		SalonID:       o.SalonID,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (h *PaymentHandler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	authorization := r.Header.Get("Authorization")
	if strings.TrimSpace(authorization) == "" {
		ResponseUnauthorized(w, "Authorization header is required")
		return
	}

	method, err := domain.ParsePaymentMethod(r.URL.Query().Get("paymentMethod"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for create payment", zap.Error(err))
		ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		ResponseBadRequest(w, "Validation failed", fields)
		return
	}

	user, err := h.users.GetUserFromToken(r.Context(), authorization)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	booking := domain.BookingSummary{ID: req.ID, SalonID: req.SalonID, TotalPrice: req.TotalPrice}
	link, err := h.service.CreateOrder(r.Context(), user, booking, method)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	ResponseCreated(w, "Payment link created", link)
}

func (h *PaymentHandler) GetPaymentOrderHandler(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "paymentOrderId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		ResponseBadRequest(w, "Invalid payment order id", map[string]string{"paymentOrderId": "must be a positive integer"})
		return
	}

	order, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	ResponseSuccess(w, "Payment order found", toOrderResponse(order))
}

func (h *PaymentHandler) GetPaymentOrderByLinkHandler(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrderByLinkID(r.Context(), chi.URLParam(r, "paymentLinkId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	ResponseSuccess(w, "Payment order found", toOrderResponse(order))
}

func (h *PaymentHandler) ProceedPaymentHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	applied, err := h.service.ConfirmByLink(r.Context(), q.Get("paymentId"), q.Get("paymentLinkId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeConfirmation(w, applied)
}

func (h *PaymentHandler) ProviderCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var req ProviderCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for provider callback", zap.Error(err))
		ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	if fields := h.validateStruct(req); fields != nil {
		ResponseBadRequest(w, "Validation failed", fields)
		return
	}

	h.logger.Info("Provider callback received",
		zap.Int64("payment_order_id", req.OrderID),
		zap.String("provider", req.Provider),
		zap.String("status", req.Status))

	applied, err := h.service.ConfirmProviderCallback(r.Context(), req.OrderID, req.Status, req.ProviderPaymentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeConfirmation(w, applied)
}

func (h *PaymentHandler) writeConfirmation(w http.ResponseWriter, applied bool) {
	if applied {
		ResponseSuccess(w, "Payment confirmed", ConfirmationResponse{Applied: true})
		return
	}
	ResponseConflict(w, "Payment was not applied", ConfirmationResponse{Applied: false})
}

func (h *PaymentHandler) validateStruct(s any) map[string]string {
	err := h.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "gt":
			fields[fe.Field()] = fmt.Sprintf("must be greater than %s", fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return fields
}

// writeServiceError maps domain errors to status codes. Internal error text
// stays in the log.
func (h *PaymentHandler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		ResponseBadRequest(w, "Validation failed", verr.Fields)
	case errors.Is(err, domain.ErrValidation):
		ResponseBadRequest(w, "Validation failed", nil)
	case errors.Is(err, domain.ErrPaymentOrderNotFound):
		ResponseNotFound(w, "Payment order not found")
	case errors.Is(err, domain.ErrUnauthorized):
		ResponseUnauthorized(w, "Unauthorized")
	case errors.Is(err, domain.ErrGateway):
		h.logger.Error("Payment gateway error", zap.Error(err))
		ResponseBadGateway(w, "Payment provider unavailable")
	default:
		h.logger.Error("Request failed", zap.Error(err))
		ResponseInternalError(w, "Internal server error")
	}
}
