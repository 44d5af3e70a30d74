package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"
)

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	BasePrice int64     `json:"base_price"`
	Currency  string    `json:"currency"`
	IsVirtual bool      `json:"is_virtual"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// Validate implements helpers.Validator. Range and format rules live in the service.
func (c *CreateEventRequest) Validate() []string {
	var errs []string
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		errs = append(errs, "name is required")
	}
	if c.StartsAt.IsZero() || c.EndsAt.IsZero() {
		errs = append(errs, "starts_at and ends_at are required")
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	return errs
}

// CreateDiscountCodeRequest is the request body for POST /events/{event_id}/discount-codes.
type CreateDiscountCodeRequest struct {
	Code       string              `json:"code"`
	Type       domain.DiscountType `json:"discount_type"`
	Value      float64             `json:"discount_value"`
	UsageLimit *int                `json:"usage_limit,omitempty"`
	ValidFrom  *time.Time          `json:"valid_from,omitempty"`
	ValidUntil *time.Time          `json:"valid_until,omitempty"`
}

// Validate implements helpers.Validator.
func (c *CreateDiscountCodeRequest) Validate() []string {
	if strings.TrimSpace(c.Code) == "" {
		return []string{"code is required"}
	}
	return domain.ValidateDiscount(c.Type, c.Value)
}

// EventSuccessResponse is the success envelope for event endpoints.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// DiscountCodeSuccessResponse is the success envelope for POST /events/{event_id}/discount-codes (201).
type DiscountCodeSuccessResponse struct {
	Data  *domain.DiscountCode `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// DiscountPreviewSuccessResponse is the success envelope for the discount preview.
type DiscountPreviewSuccessResponse struct {
	Data  *domain.DiscountResolution `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// RevenueSuccessResponse is the success envelope for GET /events/{event_id}/revenue.
type RevenueSuccessResponse struct {
	Data  *domain.Revenue   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListPaymentsResponse is the data payload for GET /events/{event_id}/payments.
type ListPaymentsResponse struct {
	Items      []*domain.Payment      `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListPaymentsSuccessResponse is the success envelope for GET /events/{event_id}/payments.
type ListPaymentsSuccessResponse struct {
	Data  ListPaymentsResponse `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

type EventController struct {
	Logger    *slog.Logger
	Service   domain.EventService
	Discounts domain.DiscountResolver
}

func NewEventController(logger *slog.Logger, svc domain.EventService, discounts domain.DiscountResolver) *EventController {
	return &EventController{
		Logger:    logger,
		Service:   svc,
		Discounts: discounts,
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates a ticketed event owned by the caller. base_price is in minor units of currency.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body controllers.CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 422 {object} helpers.APIResponse "error.code: validation"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	event, err := c.Service.CreateEvent(r.Context(), userID, domain.CreateEventInput{
		Name:      req.Name,
		Capacity:  req.Capacity,
		BasePrice: req.BasePrice,
		Currency:  req.Currency,
		IsVirtual: req.IsVirtual,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// GetEvent godoc
// @Summary Get an event
// @Tags events
// @Produce json
// @Param event_id path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{event_id} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	event, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// CreateDiscountCode godoc
// @Summary Create a discount code
// @Description Owner only. Codes are case-insensitive and stored upper-case. percentage values are percent with up to two decimals; fixed_amount values are minor units.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "Event ID (UUID)"
// @Param body body controllers.CreateDiscountCodeRequest true "Discount code"
// @Success 201 {object} controllers.DiscountCodeSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: validation"
// @Router /events/{event_id}/discount-codes [post]
func (c *EventController) CreateDiscountCode(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	var req CreateDiscountCodeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	d, err := c.Service.CreateDiscountCode(r.Context(), userID, eventID, domain.CreateDiscountInput{
		Code:       req.Code,
		Type:       req.Type,
		Value:      req.Value,
		UsageLimit: req.UsageLimit,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, d)
}

// PreviewDiscount godoc
// @Summary Preview a discount code
// @Description Resolves the code against the event without redeeming it.
// @Tags events
// @Produce json
// @Param event_id path string true "Event ID (UUID)"
// @Param code path string true "Discount code"
// @Success 200 {object} controllers.DiscountPreviewSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 422 {object} helpers.APIResponse "error.code: invalid_code"
// @Router /events/{event_id}/discount-codes/{code} [get]
func (c *EventController) PreviewDiscount(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	res, err := c.Discounts.Resolve(r.Context(), eventID, r.PathValue("code"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// Revenue godoc
// @Summary Revenue report
// @Description Owner only. Sums completed payments per currency.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "Event ID (UUID)"
// @Success 200 {object} controllers.RevenueSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{event_id}/revenue [get]
func (c *EventController) Revenue(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	rev, err := c.Service.Revenue(r.Context(), userID, eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, rev)
}

// ListEventPayments godoc
// @Summary List payments of an event
// @Description Owner only. Paginated with page and page_size (default 20, max 100).
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "Event ID (UUID)"
// @Param page query int false "Page (1-based)"
// @Param page_size query int false "Page size"
// @Success 200 {object} controllers.ListPaymentsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /events/{event_id}/payments [get]
func (c *EventController) ListEventPayments(w http.ResponseWriter, r *http.Request) {
	eventID, ok := uuidPathValue(w, r, "event_id")
	if !ok {
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	params := helpers.ParsePagination(r)
	list, total, err := c.Service.ListEventPayments(r.Context(), userID, eventID, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if list == nil {
		list = []*domain.Payment{}
	}
	meta := helpers.NewPaginationMeta(params, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListPaymentsResponse{Items: list, Pagination: meta})
}
