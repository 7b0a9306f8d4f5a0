package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation & Lookup ----

// Validation returns a 400 validation error with a caller-supplied message.
func Validation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrBeneficiaryNotFound() *AppError {
	return New("BENEFICIARY_NOT_FOUND", "Beneficiary not found or inactive", http.StatusNotFound)
}

func ErrPayoutNotFound() *AppError {
	return New("PAYOUT_NOT_FOUND", "Payout not found", http.StatusNotFound)
}

// ---- Payout Business Logic ----

func ErrInsufficientBalance() *AppError {
	return New("INSUFFICIENT_BALANCE", "Insufficient available balance", http.StatusBadRequest)
}

func ErrKeyGenerationExhausted() *AppError {
	return New("KEY_GENERATION_EXHAUSTED", "Could not generate a unique payout reference", http.StatusInternalServerError)
}

// ---- Ledger ----

// ErrLedgerInvariantViolation indicates the balance books no longer add up.
// It always aborts the enclosing transaction and surfaces as a 500.
func ErrLedgerInvariantViolation(detail string) *AppError {
	return New("LEDGER_INVARIANT_VIOLATION", fmt.Sprintf("Ledger invariant violated: %s", detail), http.StatusInternalServerError)
}

// ---- Gateway & Webhook Security ----

func ErrInvalidSignature() *AppError {
	return New("INVALID_SIGNATURE", "Invalid signature", http.StatusUnauthorized)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GATEWAY_UNAVAILABLE", "Payment gateway unavailable", http.StatusBadGateway, err)
}

// ---- Authentication ----

func ErrInvalidCredentials() *AppError {
	return New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMerchantInactive() *AppError {
	return New("MERCHANT_INACTIVE", "Merchant account is inactive", http.StatusForbidden)
}

func ErrIPNotAllowed() *AppError {
	return New("IP_NOT_ALLOWED", "Request IP is not whitelisted", http.StatusForbidden)
}

// ---- Rate Limiting ----

func ErrRateLimited() *AppError {
	return New("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure ----

// InternalError wraps an internal error as a generic 500.
func InternalError(err error) *AppError {
	return Wrap("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError, err)
}
