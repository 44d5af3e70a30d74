package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"smartevents/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
// Checkout failures use the reason codes from domain (declined, full, ...).
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeInProgress     = "in_progress"
	ErrCodeNotRegistered  = "not_registered"
	ErrCodeValidation     = domain.ReasonValidation
	ErrCodeInternalError  = "internal_error"
	ErrCodeNotCancellable = "not_cancellable"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
	// Reason is the checkout failure reason (declined, full, ...), set only
	// on checkout failures.
	Reason string `json:"reason,omitempty"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	writeError(w, statusCode, APIResponse{Error: &APIError{Code: code, Message: message}})
}

func writeError(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// ErrorStatus maps a service error to its HTTP status and error code.
// Unknown errors map to 500 internal_error.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return http.StatusUnprocessableEntity, domain.ReasonInvalidCode
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrCodeValidation
	case errors.Is(err, domain.ErrEventFull):
		return http.StatusConflict, domain.ReasonFull
	case errors.Is(err, domain.ErrPaymentTimeout):
		return http.StatusPaymentRequired, domain.ReasonTimeout
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, domain.ReasonDeclined
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return http.StatusConflict, domain.ReasonAlreadyRegistered
	case errors.Is(err, domain.ErrCheckoutCancelled):
		return http.StatusConflict, domain.ReasonCancelled
	case errors.Is(err, domain.ErrCheckoutNotCancellable), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, ErrCodeNotCancellable
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict, ErrCodeInProgress
	case errors.Is(err, domain.ErrNotRegistered):
		return http.StatusNotFound, ErrCodeNotRegistered
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// WriteServiceError writes err with the status from ErrorStatus. Checkout
// failures also carry their reason at the top level. Internal errors are
// logged and their detail is not sent to the client.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, status, code, "internal error")
		return
	}
	resp := APIResponse{Error: &APIError{Code: code, Message: err.Error()}}
	if domain.ReasonError(code) != nil {
		resp.Reason = code
	}
	writeError(w, status, resp)
}
