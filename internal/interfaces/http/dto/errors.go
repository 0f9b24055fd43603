package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown            = "ERR_UNKNOWN"
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Validation and input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Reconciliation error codes
const (
	// ErrCodeInvalidAmount is used when a payment amount is zero or negative
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeObligationCancelled is used when the owning record is cancelled
	ErrCodeObligationCancelled = "ERR_OBLIGATION_CANCELLED"
	// ErrCodeIntegrityMismatch is used when the payment ledger disagrees with
	// the stored paid amount. Its message never carries internal state.
	ErrCodeIntegrityMismatch = "ERR_INTEGRITY_MISMATCH"
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
)

// MessageContactSupport is the only message shown for data integrity failures
const MessageContactSupport = "An internal data error occurred, please contact support"

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidAmount:       http.StatusUnprocessableEntity,
	ErrCodeObligationCancelled: http.StatusUnprocessableEntity,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeIntegrityMismatch:   http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                   ErrCodeNotFound,
	"ALREADY_EXISTS":              ErrCodeAlreadyExists,
	"INVALID_INPUT":               ErrCodeInvalidInput,
	"INVALID_STATE":               ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":        ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":            ErrCodeValidation,
	"BAD_REQUEST":                 ErrCodeBadRequest,
	"INTERNAL_ERROR":              ErrCodeInternal,
	"INVALID_AMOUNT":              ErrCodeInvalidAmount,
	"OBLIGATION_CANCELLED":        ErrCodeObligationCancelled,
	"INTEGRITY_MISMATCH":          ErrCodeIntegrityMismatch,
	"INVALID_KIND":                ErrCodeInvalidInput,
	"INVALID_STATUS":              ErrCodeInvalidInput,
	"INVALID_MONTH":               ErrCodeInvalidInput,
	"INVALID_DATE":                ErrCodeInvalidInput,
	"INVALID_EXTERNAL_ID":         ErrCodeInvalidInput,
	"INVALID_COUNTERPARTY":        ErrCodeInvalidInput,
	"INVALID_PAYMENT_METHOD":      ErrCodeInvalidInput,
	"IDEMPOTENCY_KEY_REUSED":      ErrCodeConflict,
	"ARCHIVE_DISABLED":            ErrCodeServiceUnavailable,
	"PAYMENT_OBLIGATION_MISMATCH": ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
