package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartevents/internal/delivery/http/middleware"
	"smartevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBilling = `"billing_info":{"name":"Ada Lovelace","email":"ada@example.com","last_four":"4242","payment_method":"card","payment_token":"tok_visa"}`

func checkoutBody(extra string) string {
	return fmt.Sprintf(`{"event_id":%q,%s%s}`, testEventID, validBilling, extra)
}

func TestCheckoutController_Checkout(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		fakeErr       error
		noUserContext bool
		wantStatus    int
		wantCode      string
		wantReason    string
	}{
		{name: "success", body: checkoutBody(`,"promo_code":"save10"`), wantStatus: http.StatusCreated},
		{name: "declined", body: checkoutBody(""), fakeErr: fmt.Errorf("%w: card_declined", domain.ErrPaymentDeclined), wantStatus: http.StatusPaymentRequired, wantCode: "declined", wantReason: "declined"},
		{name: "timeout", body: checkoutBody(""), fakeErr: domain.ErrPaymentTimeout, wantStatus: http.StatusPaymentRequired, wantCode: "timeout", wantReason: "timeout"},
		{name: "full", body: checkoutBody(""), fakeErr: domain.ErrEventFull, wantStatus: http.StatusConflict, wantCode: "full", wantReason: "full"},
		{name: "invalid code", body: checkoutBody(`,"promo_code":"NOPE"`), fakeErr: domain.ErrInvalidCode, wantStatus: http.StatusUnprocessableEntity, wantCode: "invalid_code", wantReason: "invalid_code"},
		{name: "already registered", body: checkoutBody(""), fakeErr: domain.ErrAlreadyRegistered, wantStatus: http.StatusConflict, wantCode: "already_registered", wantReason: "already_registered"},
		{name: "in progress replay", body: checkoutBody(`,"checkout_id":"co-1"`), fakeErr: domain.ErrCheckoutInProgress, wantStatus: http.StatusConflict, wantCode: "in_progress"},
		{name: "event not found", body: checkoutBody(""), fakeErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "service validation", body: checkoutBody(""), fakeErr: domain.NewValidationError("currency XYZ is not accepted"), wantStatus: http.StatusUnprocessableEntity, wantCode: "validation", wantReason: "validation"},
		{name: "storage failure", body: checkoutBody(""), fakeErr: fmt.Errorf("save checkout: %w", domain.ErrStorage), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
		{name: "malformed json", body: `{invalid`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown field", body: checkoutBody(`,"price":1`), wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "missing event", body: `{` + validBilling + `}`, wantStatus: http.StatusUnprocessableEntity, wantCode: "validation"},
		{name: "event id not uuid", body: `{"event_id":"abc",` + validBilling + `}`, wantStatus: http.StatusUnprocessableEntity, wantCode: "validation"},
		{name: "bad billing", body: fmt.Sprintf(`{"event_id":%q,"billing_info":{"name":"A","email":"nope","last_four":"12","payment_method":"card"}}`, testEventID), wantStatus: http.StatusUnprocessableEntity, wantCode: "validation"},
		{name: "bad checkout id", body: checkoutBody(`,"checkout_id":"has spaces"`), wantStatus: http.StatusUnprocessableEntity, wantCode: "validation"},
		{name: "user_id of someone else", body: checkoutBody(`,"user_id":"other"`), wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "no user in context", body: checkoutBody(""), noUserContext: true, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCheckoutService{
				result: &domain.CheckoutResult{CheckoutID: "co-1", TicketID: "t-1", FinalPrice: 1800, Currency: "USD"},
				err:    tt.fakeErr,
			}
			ctrl := NewCheckoutController(testLogger, fake)
			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if !tt.noUserContext {
				req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
			}
			rr := httptest.NewRecorder()

			ctrl.Checkout(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			var res domain.CheckoutResult
			envelope := decodeEnvelope(t, rr.Body, &res)
			if tt.wantStatus == http.StatusCreated {
				require.Nil(t, envelope.Error)
				assert.Equal(t, "t-1", res.TicketID)
				assert.Equal(t, int64(1800), res.FinalPrice)
				assert.Equal(t, testUserID, fake.lastReq.UserID)
				assert.Equal(t, "save10", fake.lastReq.PromoCode)
				assert.Equal(t, "4242", fake.lastReq.Billing.LastFour)
				return
			}
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantCode, envelope.Error.Code)
			assert.Equal(t, tt.wantReason, envelope.Reason)
		})
	}
}

func TestCheckoutController_StorageErrorDetailIsHidden(t *testing.T) {
	fake := &fakeCheckoutService{err: fmt.Errorf("insert payment: pq: connection reset: %w", domain.ErrStorage)}
	ctrl := NewCheckoutController(testLogger, fake)
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(checkoutBody("")))
	req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
	rr := httptest.NewRecorder()

	ctrl.Checkout(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "pq:")
}

func TestCheckoutController_GetCheckout(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		fakeErr    error
		wantStatus int
	}{
		{"success", "co-1", nil, http.StatusOK},
		{"not found", "co-2", domain.ErrNotFound, http.StatusNotFound},
		{"someone else's", "co-3", domain.ErrForbidden, http.StatusForbidden},
		{"invalid id", "bad id!", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCheckoutService{
				checkout: &domain.Checkout{ID: tt.id, State: domain.CheckoutComplete, FinalPrice: 1800, TicketID: "t-1"},
				err:      tt.fakeErr,
			}
			ctrl := NewCheckoutController(testLogger, fake)
			req := httptest.NewRequest(http.MethodGet, "/checkout/x", nil)
			req.SetPathValue("id", tt.id)
			req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
			rr := httptest.NewRecorder()

			ctrl.GetCheckout(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				var co domain.Checkout
				decodeEnvelope(t, rr.Body, &co)
				assert.Equal(t, domain.CheckoutComplete, co.State)
				assert.Equal(t, testUserID, fake.lastUser)
			}
		})
	}
}

func TestCheckoutController_CancelCheckout(t *testing.T) {
	tests := []struct {
		name       string
		fakeErr    error
		wantStatus int
	}{
		{"cancelled", nil, http.StatusNoContent},
		{"already charging", domain.ErrCheckoutNotCancellable, http.StatusConflict},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"not owner", domain.ErrForbidden, http.StatusForbidden},
		{"store down", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCheckoutService{err: tt.fakeErr}
			ctrl := NewCheckoutController(testLogger, fake)
			req := httptest.NewRequest(http.MethodPost, "/checkout/co-1/cancel", nil)
			req.SetPathValue("id", "co-1")
			req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
			rr := httptest.NewRecorder()

			ctrl.CancelCheckout(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "co-1", fake.lastID)
			if tt.wantStatus == http.StatusNoContent {
				assert.True(t, fake.cancelled)
				assert.Empty(t, rr.Body.String())
			}
		})
	}
}
