package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Counting business rule error codes
const (
	// ErrCodeInvalidTransition is used for state machine violations
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodePlanCodeExists is used when a plan code is already taken
	ErrCodePlanCodeExists = "ERR_PLAN_CODE_EXISTS"
	// ErrCodePlanNotActive is used when a session is requested for an inactive plan
	ErrCodePlanNotActive = "ERR_PLAN_NOT_ACTIVE"
	// ErrCodePlanScopeLocked is used when criteria edits hit a plan with open sessions
	ErrCodePlanScopeLocked = "ERR_PLAN_SCOPE_LOCKED"
	// ErrCodeHasActiveSessions is used when deleting a plan that still has open sessions
	ErrCodeHasActiveSessions = "ERR_HAS_ACTIVE_SESSIONS"
	// ErrCodeSessionNotActive is used when counts are submitted outside IN_PROGRESS
	ErrCodeSessionNotActive = "ERR_SESSION_NOT_ACTIVE"
	// ErrCodeIncompleteItems is used when completing a session with pending items
	ErrCodeIncompleteItems = "ERR_INCOMPLETE_ITEMS"
	// ErrCodeInvalidQuantity is used for negative or malformed counted quantities
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeInvalidFrequency is used for unknown plan frequencies
	ErrCodeInvalidFrequency = "ERR_INVALID_FREQUENCY"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeValidation is used when request field validation fails
	ErrCodeValidation = "ERR_VALIDATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors. State machine and lifecycle violations are
	// conflicts with current resource state -> 409; an otherwise valid
	// request the state cannot absorb -> 422.
	ErrCodeInvalidTransition: http.StatusConflict,
	ErrCodeInvalidState:      http.StatusConflict,
	ErrCodePlanCodeExists:    http.StatusConflict,
	ErrCodePlanNotActive:     http.StatusConflict,
	ErrCodePlanScopeLocked:   http.StatusConflict,
	ErrCodeHasActiveSessions: http.StatusConflict,
	ErrCodeSessionNotActive:  http.StatusConflict,
	ErrCodeIncompleteItems:   http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeInvalidQuantity:  http.StatusBadRequest,
	ErrCodeInvalidFrequency: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps raw domain error codes to the API format
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"CONCURRENT_MODIFICATION": ErrCodeConcurrencyConflict,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"INVALID_TRANSITION":      ErrCodeInvalidTransition,
	"INVALID_QUANTITY":        ErrCodeInvalidQuantity,
	"INVALID_FREQUENCY":       ErrCodeInvalidFrequency,
	"PLAN_CODE_EXISTS":        ErrCodePlanCodeExists,
	"PLAN_NOT_ACTIVE":         ErrCodePlanNotActive,
	"PLAN_SCOPE_LOCKED":       ErrCodePlanScopeLocked,
	"HAS_ACTIVE_SESSIONS":     ErrCodeHasActiveSessions,
	"SESSION_NOT_ACTIVE":      ErrCodeSessionNotActive,
	"INCOMPLETE_ITEMS":        ErrCodeIncompleteItems,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"FORBIDDEN":               ErrCodeForbidden,
}

// NormalizeErrorCode converts a domain error code to the API format.
// If the code is already in the API format or unknown, returns it as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
