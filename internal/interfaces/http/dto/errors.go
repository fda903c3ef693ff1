package dto

import "net/http"

// Error codes carried in the response envelope. Domain errors keep their own
// code; the codes below cover transport level failures.

// General error codes
const (
	ErrCodeInternal = "INTERNAL_ERROR"
)

// Request error codes
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "INVALID_TOKEN"
	ErrCodeInvalidSig   = "INVALID_SIGNATURE"
)

// Domain error codes, mirrored from the domain packages
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidCreditType   = "INVALID_CREDIT_TYPE"
	ErrCodeInvalidAddonType    = "INVALID_ADDON_TYPE"
	ErrCodeInvalidPackType     = "INVALID_PACK_TYPE"
	ErrCodeInvalidTier         = "INVALID_TIER"
	ErrCodeInvalidMetric       = "INVALID_METRIC"
	ErrCodePackTerminal        = "PACK_TERMINAL"
	ErrCodeLedgerCorrupt       = "LEDGER_CORRUPT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Request errors -> 400
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Auth errors -> 401
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeInvalidSig:   http.StatusBadRequest,

	// Lookup and uniqueness
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Closed sets and amounts -> 400
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeInvalidAmount:     http.StatusBadRequest,
	ErrCodeInvalidCreditType: http.StatusBadRequest,
	ErrCodeInvalidAddonType:  http.StatusBadRequest,
	ErrCodeInvalidPackType:   http.StatusBadRequest,
	ErrCodeInvalidTier:       http.StatusBadRequest,
	ErrCodeInvalidMetric:     http.StatusBadRequest,

	// Business rules -> 422
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	ErrCodePackTerminal:        http.StatusUnprocessableEntity,

	ErrCodeLedgerCorrupt: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
