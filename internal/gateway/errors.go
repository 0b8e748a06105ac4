package gateway

import (
	"context"
	"errors"
	"fmt"

	"booking-payments/internal/domain"
)

const (
	CodeTimeout           = "timeout"
	CodeProviderError     = "provider_error"
	CodeProviderRejected  = "provider_rejected"
	CodeUnauthenticated   = "unauthenticated"
	CodeRateLimited       = "rate_limited"
	CodeInvalidResponse   = "invalid_response"
	CodeUnsupportedMethod = "unsupported_method"
)

// GatewayError describes a failed provider call. It matches domain.ErrGateway.
type GatewayError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s error [%s]: %s - %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s error [%s]: %s", e.Provider, e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == domain.ErrGateway
}

func NewGatewayError(provider, code, message string, err error) *GatewayError {
	return &GatewayError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: code == CodeTimeout || code == CodeRateLimited || code == CodeProviderError,
		Err:       err,
	}
}

// WrapError turns any provider failure into a *GatewayError, classifying
// context deadline and cancellation as retryable timeouts.
func WrapError(provider, message string, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewGatewayError(provider, CodeTimeout, message, err)
	}
	return NewGatewayError(provider, CodeProviderError, message, err)
}

// IsRetryable reports whether err is a gateway failure worth retrying.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return false
}
