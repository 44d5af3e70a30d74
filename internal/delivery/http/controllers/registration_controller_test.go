package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartevents/internal/delivery/http/middleware"
	"smartevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationController_CancelRegistration(t *testing.T) {
	tests := []struct {
		name          string
		eventID       string
		body          string
		fakeErr       error
		noUserContext bool
		wantStatus    int
		wantCode      string
	}{
		{name: "empty body", eventID: testEventID, wantStatus: http.StatusNoContent},
		{name: "matching user_id", eventID: testEventID, body: `{"user_id":"user-123"}`, wantStatus: http.StatusNoContent},
		{name: "other user_id", eventID: testEventID, body: `{"user_id":"someone"}`, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "not registered", eventID: testEventID, fakeErr: domain.ErrNotRegistered, wantStatus: http.StatusNotFound, wantCode: "not_registered"},
		{name: "bad event id", eventID: "nope", wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown field", eventID: testEventID, body: `{"foo":1}`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "no user", eventID: testEventID, noUserContext: true, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLedger{err: tt.fakeErr}
			ctrl := NewRegistrationController(testLogger, fake)
			req := httptest.NewRequest(http.MethodPost, "/registrations/x/cancel", bytes.NewBufferString(tt.body))
			req.SetPathValue("event_id", tt.eventID)
			if !tt.noUserContext {
				req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
			}
			rr := httptest.NewRecorder()

			ctrl.CancelRegistration(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, testUserID, fake.lastUser)
				assert.Equal(t, testEventID, fake.lastEvent)
				return
			}
			envelope := decodeEnvelope(t, rr.Body, nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.wantCode, envelope.Error.Code)
		})
	}
}

func TestRegistrationController_Availability(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fake := &fakeLedger{availability: &domain.Availability{EventID: testEventID, Capacity: 10, RemainingCapacity: 3}}
		ctrl := NewRegistrationController(testLogger, fake)
		req := httptest.NewRequest(http.MethodGet, "/events/x/availability", nil)
		req.SetPathValue("event_id", testEventID)
		rr := httptest.NewRecorder()

		ctrl.Availability(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var a domain.Availability
		decodeEnvelope(t, rr.Body, &a)
		assert.Equal(t, 3, a.RemainingCapacity)
	})

	t.Run("unknown event", func(t *testing.T) {
		ctrl := NewRegistrationController(testLogger, &fakeLedger{err: domain.ErrNotFound})
		req := httptest.NewRequest(http.MethodGet, "/events/x/availability", nil)
		req.SetPathValue("event_id", testEventID)
		rr := httptest.NewRecorder()

		ctrl.Availability(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
