package controllers

import (
	"log/slog"
	"net/http"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"
)

// MeController serves the caller's own tickets and payments.
type MeController struct {
	Logger   *slog.Logger
	Tickets  domain.TicketIssuer
	Payments domain.PaymentProcessor
}

func NewMeController(logger *slog.Logger, tickets domain.TicketIssuer, payments domain.PaymentProcessor) *MeController {
	return &MeController{
		Logger:   logger,
		Tickets:  tickets,
		Payments: payments,
	}
}

// TicketsSuccessResponse is the success envelope for GET /me/tickets.
type TicketsSuccessResponse struct {
	Data  []*domain.Ticket  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// PaymentsSuccessResponse is the success envelope for GET /me/payments.
type PaymentsSuccessResponse struct {
	Data  []*domain.Payment `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListMyTickets godoc
// @Summary List my tickets
// @Description Includes void tickets and tickets of events the caller has since unregistered from.
// @Tags me
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.TicketsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/tickets [get]
func (c *MeController) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	list, err := c.Tickets.ListByAttendee(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, list)
}

// ListMyPayments godoc
// @Summary List my payments
// @Tags me
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.PaymentsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/payments [get]
func (c *MeController) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	list, err := c.Payments.ListByUser(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if list == nil {
		list = []*domain.Payment{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, list)
}
