package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartevents/internal/delivery/http/middleware"
	"smartevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeController_ListMyTickets(t *testing.T) {
	tickets := &fakeTickets{tickets: []*domain.Ticket{{ID: "t1", Status: domain.TicketPaid}}}
	ctrl := NewMeController(testLogger, tickets, &fakePayments{})

	req := httptest.NewRequest(http.MethodGet, "/me/tickets", nil)
	rr := httptest.NewRecorder()
	ctrl.ListMyTickets(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
	rr = httptest.NewRecorder()
	ctrl.ListMyTickets(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var got []*domain.Ticket
	decodeEnvelope(t, rr.Body, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	tickets.err = errors.New("db down")
	rr = httptest.NewRecorder()
	ctrl.ListMyTickets(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMeController_ListMyPayments_EmptyIsArray(t *testing.T) {
	ctrl := NewMeController(testLogger, &fakeTickets{}, &fakePayments{})
	req := httptest.NewRequest(http.MethodGet, "/me/payments", nil)
	req = req.WithContext(middleware.SetUserID(req.Context(), testUserID))
	rr := httptest.NewRecorder()

	ctrl.ListMyPayments(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"error":null}`, rr.Body.String())
}
