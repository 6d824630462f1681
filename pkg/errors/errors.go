package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Generic sentinels.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")
	ErrConflict      = errors.New("conflict")
	ErrRateLimited   = errors.New("too many requests")
)

// Membership and payment sentinels.
var (
	ErrInvalidOrExpiredToken = errors.New("reset link is invalid or has expired")
	ErrWeakPassword          = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrPasswordTooLong       = errors.New("password must be at most 72 bytes")
	ErrGatewayDeclined       = errors.New("payment declined")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrPersistence           = errors.New("storage unavailable")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrMailDelivery          = errors.New("mail delivery failed")
)

// AppError carries a machine-readable code and a caller-facing message
// alongside the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error for a uniqueness violation.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error hiding err from the caller.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Persistence reports a storage failure as a retryable condition.
func Persistence(err error) *AppError {
	return &AppError{
		Code:    "STORAGE_UNAVAILABLE",
		Message: "we could not save your changes, please try again later",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", ErrPersistence, err),
	}
}

// Declined reports a payment the gateway refused.
func Declined(reason string) *AppError {
	msg := "the payment was declined"
	if reason != "" {
		msg = fmt.Sprintf("the payment was declined: %s", reason)
	}
	return &AppError{
		Code:    "PAYMENT_DECLINED",
		Message: msg,
		Status:  http.StatusPaymentRequired,
		Err:     ErrGatewayDeclined,
	}
}

// InvalidTransition reports an order status change the state machine forbids.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("order cannot move from %s to %s", from, to),
		Status:  http.StatusConflict,
		Err:     ErrInvalidTransition,
	}
}

// Wrap adds context to err.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Code returns the machine-readable code for err.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return "INVALID_OR_EXPIRED_TOKEN"
	case errors.Is(err, ErrWeakPassword):
		return "WEAK_PASSWORD"
	case errors.Is(err, ErrPasswordMismatch):
		return "PASSWORD_MISMATCH"
	case errors.Is(err, ErrPasswordTooLong):
		return "PASSWORD_TOO_LONG"
	case errors.Is(err, ErrGatewayDeclined):
		return "PAYMENT_DECLINED"
	case errors.Is(err, ErrGatewayUnavailable):
		return "PAYMENT_UNAVAILABLE"
	case errors.Is(err, ErrMailDelivery):
		return "MAIL_DELIVERY_FAILED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOrExpiredToken),
		errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordTooLong):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrGatewayDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrMailDelivery):
		return http.StatusBadGateway
	case errors.Is(err, ErrGatewayUnavailable), errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
