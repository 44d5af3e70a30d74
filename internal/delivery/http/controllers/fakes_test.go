package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"smartevents/internal/delivery/http/helpers"
	"smartevents/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testEventID = "5b0f7a9e-3c1d-4e8a-9f2b-6d4c3a2b1e0f"
	testUserID  = "user-123"
)

type fakeCheckoutService struct {
	result    *domain.CheckoutResult
	checkout  *domain.Checkout
	err       error
	lastReq   domain.CheckoutRequest
	lastUser  string
	lastID    string
	cancelled bool
}

func (f *fakeCheckoutService) Checkout(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeCheckoutService) Cancel(_ context.Context, userID, checkoutID string) error {
	f.lastUser, f.lastID = userID, checkoutID
	if f.err == nil {
		f.cancelled = true
	}
	return f.err
}

func (f *fakeCheckoutService) Get(_ context.Context, userID, checkoutID string) (*domain.Checkout, error) {
	f.lastUser, f.lastID = userID, checkoutID
	return f.checkout, f.err
}

func (f *fakeCheckoutService) Recover(context.Context, *domain.Payment) (*domain.Checkout, error) {
	return nil, nil
}

type fakeLedger struct {
	availability *domain.Availability
	err          error
	lastUser     string
	lastEvent    string
}

func (f *fakeLedger) Register(context.Context, string, string) (*domain.EventRegistration, bool, error) {
	return nil, false, nil
}

func (f *fakeLedger) Unregister(_ context.Context, userID, eventID string) error {
	f.lastUser, f.lastEvent = userID, eventID
	return f.err
}

func (f *fakeLedger) Availability(_ context.Context, eventID string) (*domain.Availability, error) {
	f.lastEvent = eventID
	return f.availability, f.err
}

func (f *fakeLedger) GetActive(context.Context, string, string) (*domain.EventRegistration, error) {
	return nil, domain.ErrNotFound
}

type fakeEventService struct {
	event        *domain.Event
	discount     *domain.DiscountCode
	revenue      *domain.Revenue
	payments     []*domain.Payment
	total        int
	err          error
	lastOwner    string
	lastEventIn  domain.CreateEventInput
	lastCodeIn   domain.CreateDiscountInput
	lastPageArgs domain.PaginationParams
}

func (f *fakeEventService) CreateEvent(_ context.Context, ownerID string, in domain.CreateEventInput) (*domain.Event, error) {
	f.lastOwner, f.lastEventIn = ownerID, in
	return f.event, f.err
}

func (f *fakeEventService) GetEvent(context.Context, string) (*domain.Event, error) {
	return f.event, f.err
}

func (f *fakeEventService) CreateDiscountCode(_ context.Context, ownerID, _ string, in domain.CreateDiscountInput) (*domain.DiscountCode, error) {
	f.lastOwner, f.lastCodeIn = ownerID, in
	return f.discount, f.err
}

func (f *fakeEventService) Revenue(_ context.Context, ownerID, _ string) (*domain.Revenue, error) {
	f.lastOwner = ownerID
	return f.revenue, f.err
}

func (f *fakeEventService) ListEventPayments(_ context.Context, ownerID, _ string, p domain.PaginationParams) ([]*domain.Payment, int, error) {
	f.lastOwner, f.lastPageArgs = ownerID, p
	return f.payments, f.total, f.err
}

type fakeResolver struct {
	res      *domain.DiscountResolution
	err      error
	lastCode string
}

func (f *fakeResolver) Resolve(_ context.Context, _, code string) (*domain.DiscountResolution, error) {
	f.lastCode = code
	return f.res, f.err
}

func (f *fakeResolver) Redeem(context.Context, *domain.DiscountCode, string) error { return nil }

type fakeTickets struct {
	tickets []*domain.Ticket
	err     error
}

func (f *fakeTickets) Issue(context.Context, domain.IssueTicketRequest) (*domain.Ticket, error) {
	return nil, nil
}
func (f *fakeTickets) ForPayment(context.Context, string) (*domain.Ticket, error) { return nil, nil }
func (f *fakeTickets) Void(context.Context, string) error                         { return nil }
func (f *fakeTickets) ListByAttendee(context.Context, string) ([]*domain.Ticket, error) {
	return f.tickets, f.err
}

type fakePayments struct {
	payments []*domain.Payment
	err      error
}

func (f *fakePayments) Charge(context.Context, domain.ChargeRequest) (*domain.Payment, error) {
	return nil, nil
}
func (f *fakePayments) Settle(context.Context, string) (*domain.Payment, error) {
	return nil, nil
}
func (f *fakePayments) Refund(context.Context, string, string) (*domain.Payment, error) {
	return nil, nil
}
func (f *fakePayments) Get(context.Context, string) (*domain.Payment, error) { return nil, nil }
func (f *fakePayments) ListByUser(context.Context, string) ([]*domain.Payment, error) {
	return f.payments, f.err
}

// decodeEnvelope decodes the response envelope and re-decodes its data into dest when non-nil.
func decodeEnvelope(t *testing.T, body io.Reader, dest any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(body).Decode(&envelope), "response must be valid JSON envelope")
	if dest != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dest))
	}
	return envelope
}
