package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"
)

type RegistrationController struct {
	Logger *slog.Logger
	Ledger domain.RegistrationLedger
}

func NewRegistrationController(logger *slog.Logger, ledger domain.RegistrationLedger) *RegistrationController {
	return &RegistrationController{
		Logger: logger,
		Ledger: ledger,
	}
}

// CancelRegistrationRequest is the optional body of POST /registrations/{event_id}/cancel.
type CancelRegistrationRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// AvailabilitySuccessResponse is the success envelope for GET /events/{event_id}/availability.
type AvailabilitySuccessResponse struct {
	Data  *domain.Availability `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// CancelRegistration godoc
// @Summary Unregister from an event
// @Description Cancels the caller's registration. Issued tickets are kept as a historical record.
// @Tags registrations
// @Accept json
// @Security BearerAuth
// @Param event_id path string true "Event ID (UUID)"
// @Param body body controllers.CancelRegistrationRequest false "Optional; user_id must match the caller"
// @Success 204 "Registration cancelled"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_registered"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /registrations/{event_id}/cancel [post]
func (c *RegistrationController) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var body CancelRegistrationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return
	}
	if body.UserID != "" && body.UserID != userID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "user_id does not match the authenticated user")
		return
	}

	if err := c.Ledger.Unregister(r.Context(), userID, eventID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Availability godoc
// @Summary Remaining capacity of an event
// @Description Advisory only: the seat is taken atomically at checkout, so a positive value does not guarantee one.
// @Tags registrations
// @Produce json
// @Param event_id path string true "Event ID (UUID)"
// @Success 200 {object} controllers.AvailabilitySuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{event_id}/availability [get]
func (c *RegistrationController) Availability(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	a, err := c.Ledger.Availability(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, a)
}
