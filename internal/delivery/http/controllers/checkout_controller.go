package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"
)

type CheckoutController struct {
	Logger  *slog.Logger
	Service domain.CheckoutOrchestrator
}

func NewCheckoutController(logger *slog.Logger, svc domain.CheckoutOrchestrator) *CheckoutController {
	return &CheckoutController{
		Logger:  logger,
		Service: svc,
	}
}

// CheckoutRequestBody is the request body for POST /checkout.
type CheckoutRequestBody struct {
	// CheckoutID lets the client retry the same checkout safely. Generated when empty.
	CheckoutID string `json:"checkout_id,omitempty"`
	// UserID, when sent, must match the authenticated caller.
	UserID      string             `json:"user_id,omitempty"`
	EventID     string             `json:"event_id"`
	PromoCode   string             `json:"promo_code,omitempty"`
	BillingInfo domain.BillingInfo `json:"billing_info"`
}

// Validate implements helpers.Validator.
func (b *CheckoutRequestBody) Validate() []string {
	var errs []string
	b.EventID = strings.TrimSpace(b.EventID)
	if b.EventID == "" {
		errs = append(errs, "event_id is required")
	} else if !isUUID(b.EventID) {
		errs = append(errs, "event_id must be a UUID")
	}
	if b.CheckoutID != "" && !checkoutIDPattern.MatchString(b.CheckoutID) {
		errs = append(errs, "checkout_id must be 1-64 letters, digits, '-' or '_'")
	}
	return append(errs, b.BillingInfo.Validate()...)
}

// CheckoutSuccessResponse is the success envelope for POST /checkout (201).
type CheckoutSuccessResponse struct {
	Data  *domain.CheckoutResult `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// CheckoutStateResponse is the success envelope for GET /checkout/{id} (200).
type CheckoutStateResponse struct {
	Data  *domain.Checkout  `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// Checkout godoc
// @Summary Buy a ticket for an event
// @Description Resolves the promo code, charges the final price, registers the caller and issues a ticket. Any failure after the charge refunds it before responding. Replaying a checkout_id returns the first outcome.
// @Tags checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Replays the stored response for a repeated key"
// @Param body body controllers.CheckoutRequestBody true "Checkout input"
// @Success 201 {object} controllers.CheckoutSuccessResponse "data contains ticket_id and final_price"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 402 {object} helpers.APIResponse "error.code: declined | timeout"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: full | already_registered | cancelled | in_progress"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_code | validation"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /checkout [post]
func (c *CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	var body CheckoutRequestBody
	if !helpers.DecodeAndValidate(w, r, &body) {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if body.UserID != "" && body.UserID != userID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "user_id does not match the authenticated user")
		return
	}

	res, err := c.Service.Checkout(r.Context(), domain.CheckoutRequest{
		CheckoutID: body.CheckoutID,
		UserID:     userID,
		EventID:    body.EventID,
		PromoCode:  body.PromoCode,
		Billing:    body.BillingInfo,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, res)
}

// GetCheckout godoc
// @Summary Get a checkout
// @Description Returns the state, price and ticket of one of the caller's checkouts.
// @Tags checkout
// @Produce json
// @Security BearerAuth
// @Param id path string true "Checkout ID"
// @Success 200 {object} controllers.CheckoutStateResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /checkout/{id} [get]
func (c *CheckoutController) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := checkoutPathID(w, r)
	if !ok {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	co, err := c.Service.Get(r.Context(), userID, id)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, co)
}

// CancelCheckout godoc
// @Summary Cancel a checkout before it is charged
// @Description Cancels a checkout that has not reached the payment gateway. Cancelling an already cancelled checkout is a no-op.
// @Tags checkout
// @Security BearerAuth
// @Param id path string true "Checkout ID"
// @Success 204 "Cancelled"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: not_cancellable"
// @Router /checkout/{id}/cancel [post]
func (c *CheckoutController) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := checkoutPathID(w, r)
	if !ok {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := c.Service.Cancel(r.Context(), userID, id); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func checkoutPathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !checkoutIDPattern.MatchString(id) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid checkout id")
		return "", false
	}
	return id, true
}
