package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Response represents the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// Envelope is the decoding side of Response; Data is left raw for the caller
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo represents error details in the response
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Detail keys shared with the ticketing backend
const (
	DetailConflictingSeats = "conflicting_seats"
	DetailSectionName      = "section_name"
	DetailAvailable        = "available"
	DetailStep             = "step"
	DetailLoginRedirect    = "login_redirect"
)

// ConflictingSeats returns the seat ids listed under DetailConflictingSeats
func (e *ErrorInfo) ConflictingSeats() []string {
	if e == nil || e.Details == nil {
		return nil
	}
	raw := e.Details[DetailConflictingSeats]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	seats := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			seats = append(seats, s)
		}
	}
	return seats
}

// --- Error Code Constants ---

const (
	// Client errors (4xx)
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway         = "BAD_GATEWAY"

	// Checkout errors
	ErrCodeValidationFailed         = "VALIDATION_FAILED"
	ErrCodeSessionNotFound          = "SESSION_NOT_FOUND"
	ErrCodeCartEmpty                = "CART_EMPTY"
	ErrCodeCartLocked               = "CART_LOCKED"
	ErrCodeSelectionIncomplete      = "SELECTION_INCOMPLETE"
	ErrCodeInvalidStep              = "INVALID_STEP"
	ErrCodeTestPaymentDisabled      = "TEST_PAYMENT_DISABLED"
	ErrCodeInsufficientStock        = "INSUFFICIENT_STOCK"
	ErrCodeSectionInsufficientStock = "SECTION_INSUFFICIENT_STOCK"
	ErrCodeSeatsAlreadyReserved     = "SEATS_ALREADY_RESERVED"
	ErrCodeEventHasStarted          = "EVENT_HAS_STARTED"
	ErrCodePaymentFailed            = "PAYMENT_FAILED"
)

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes
var ErrorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:               http.StatusBadRequest,
	ErrCodeUnauthorized:             http.StatusUnauthorized,
	ErrCodeForbidden:                http.StatusForbidden,
	ErrCodeNotFound:                 http.StatusNotFound,
	ErrCodeConflict:                 http.StatusConflict,
	ErrCodeUnprocessableEntity:      http.StatusUnprocessableEntity,
	ErrCodeInternalError:            http.StatusInternalServerError,
	ErrCodeServiceUnavailable:       http.StatusServiceUnavailable,
	ErrCodeBadGateway:               http.StatusBadGateway,
	ErrCodeValidationFailed:         http.StatusBadRequest,
	ErrCodeSessionNotFound:          http.StatusNotFound,
	ErrCodeCartEmpty:                http.StatusUnprocessableEntity,
	ErrCodeCartLocked:               http.StatusConflict,
	ErrCodeSelectionIncomplete:      http.StatusUnprocessableEntity,
	ErrCodeInvalidStep:              http.StatusConflict,
	ErrCodeTestPaymentDisabled:      http.StatusForbidden,
	ErrCodeInsufficientStock:        http.StatusConflict,
	ErrCodeSectionInsufficientStock: http.StatusConflict,
	ErrCodeSeatsAlreadyReserved:     http.StatusConflict,
	ErrCodeEventHasStarted:          http.StatusGone,
	ErrCodePaymentFailed:            http.StatusPaymentRequired,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// --- Response Builders ---

// Success creates a success response with data
func Success(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// Error creates an error response
func Error(code string, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorWithDetails creates an error response with additional details
func ErrorWithDetails(code string, message string, details map[string]string) *Response {
	resp := Error(code, message)
	if len(details) > 0 {
		resp.Error.Details = details
	}
	return resp
}

// BadRequest creates a bad request error response
func BadRequest(message string) *Response {
	return Error(ErrCodeBadRequest, message)
}

// Unauthorized creates an unauthorized error response
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Authentication required"
	}
	return Error(ErrCodeUnauthorized, message)
}

// NotFound creates a not found error response
func NotFound(message string) *Response {
	if message == "" {
		message = "Resource not found"
	}
	return Error(ErrCodeNotFound, message)
}

// InternalError creates an internal server error response
func InternalError(message string) *Response {
	if message == "" {
		message = "An internal error occurred"
	}
	return Error(ErrCodeInternalError, message)
}

// ValidationFailed creates a validation error response with field details
func ValidationFailed(details map[string]string) *Response {
	return ErrorWithDetails(ErrCodeValidationFailed, "Validation failed", details)
}

// SeatsAlreadyReserved creates a seat contention error listing the conflicting seats
func SeatsAlreadyReserved(message string, seats []string) *Response {
	return ErrorWithDetails(ErrCodeSeatsAlreadyReserved, message, map[string]string{
		DetailConflictingSeats: strings.Join(seats, ","),
	})
}

// ServiceUnavailable creates a service unavailable error response
func ServiceUnavailable(message string) *Response {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return Error(ErrCodeServiceUnavailable, message)
}
