package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"smartevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ev := h.seedEvent(t, 2, 2000)

	reg, created, err := h.ledger.Register(ctx, "user-1", ev.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RegistrationConfirmed, reg.Status)

	again, created, err := h.ledger.Register(ctx, "user-1", ev.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, reg.ID, again.ID)

	_, _, err = h.ledger.Register(ctx, "user-2", ev.ID)
	require.NoError(t, err)
	_, _, err = h.ledger.Register(ctx, "user-3", ev.ID)
	require.ErrorIs(t, err, domain.ErrEventFull)

	avail, err := h.ledger.Availability(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{EventID: ev.ID, Capacity: 2, RemainingCapacity: 0}, *avail)

	require.NoError(t, h.ledger.Unregister(ctx, "user-1", ev.ID))
	require.ErrorIs(t, h.ledger.Unregister(ctx, "user-1", ev.ID), domain.ErrNotRegistered)

	avail, err = h.ledger.Availability(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.RemainingCapacity)

	msgs, err := h.repos.Outbox.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.TopicRegistrationCancelled, msgs[0].Topic)
	var payload domain.RegistrationCancelledEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, ev.ID, payload.EventID)
}

func TestRegistrationLedger_UnknownEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, _, err := h.ledger.Register(ctx, "user-1", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.ledger.Availability(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicketIssuer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	req := domain.IssueTicketRequest{PaymentID: "pay-1", EventID: "event-1", AttendeeID: "user-1", Price: 1800, Currency: "USD"}

	tk, err := h.tickets.Issue(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPaid, tk.Status)

	_, err = h.tickets.Issue(ctx, req)
	require.ErrorIs(t, err, domain.ErrDuplicateTicket)

	got, err := h.tickets.ForPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)

	require.NoError(t, h.tickets.Void(ctx, tk.ID))
	got, err = h.tickets.ForPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketVoid, got.Status)
	require.ErrorIs(t, h.tickets.Void(ctx, "missing"), domain.ErrNotFound)

	_, err = h.tickets.Issue(ctx, domain.IssueTicketRequest{Price: -1})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	list, err := h.tickets.ListByAttendee(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
}
