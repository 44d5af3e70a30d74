package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"smartevents/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestCheckoutRepository_Create(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO checkouts`).
			WithArgs("co-1", "user-1", "ev-1", "SAVE10", "started", int64(2000), int64(2000), "USD", ts, ts).
			WillReturnResult(sqlmock.NewResult(0, 1))

		c := &domain.Checkout{ID: "co-1", UserID: "user-1", EventID: "ev-1", PromoCode: "SAVE10", State: domain.CheckoutStarted,
			BasePrice: 2000, FinalPrice: 2000, Currency: "USD", CreatedAt: ts, UpdatedAt: ts}
		require.NoError(t, NewCheckoutRepository(db).Create(ctx, c))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id reused", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`INSERT INTO checkouts`).WillReturnError(&pq.Error{Code: "23505"})

		err = NewCheckoutRepository(db).Create(ctx, &domain.Checkout{ID: "co-1"})
		require.ErrorIs(t, err, domain.ErrCheckoutExists)
	})
}

func TestCheckoutRepository_Transition(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	from := []domain.CheckoutState{domain.CheckoutStarted, domain.CheckoutDiscountApplied}

	tests := []struct {
		name    string
		result  driver.Result
		wantErr error
	}{
		{name: "wins the swap", result: sqlmock.NewResult(0, 1)},
		{name: "state moved on", result: sqlmock.NewResult(0, 0), wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`UPDATE checkouts SET state = \$2, updated_at = \$3 WHERE id = \$1 AND state = ANY\(\$4\)`).
				WithArgs("co-1", "charging", ts, pq.Array([]string{"started", "discount_applied"})).
				WillReturnResult(tt.result)

			err = NewCheckoutRepository(db).Transition(ctx, "co-1", from, domain.CheckoutCharging, ts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckoutRepository_GetAndUpdate(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "user_id", "event_id", "promo_code", "discount_id", "state", "base_price", "final_price", "currency",
		"payment_id", "registration_id", "ticket_id", "failure_reason", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM checkouts\s+WHERE id = \$1`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("co-1", "user-1", "ev-1", "", "", "charged", int64(2050), int64(2050), "USD",
			"pay-1", "", "", "", ts, ts))
	mock.ExpectExec(`UPDATE checkouts\s+SET discount_id = \$2`).
		WithArgs("co-1", "", "registered", int64(2050), int64(2050), "USD", "pay-1", "reg-1", "", "", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCheckoutRepository(db)
	c, err := repo.GetByID(ctx, "co-1")
	require.NoError(t, err)
	require.Equal(t, domain.CheckoutCharged, c.State)

	c.State = domain.CheckoutRegistered
	c.RegistrationID = "reg-1"
	require.NoError(t, repo.Update(ctx, c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRepository_ListStuck(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "user_id", "event_id", "promo_code", "discount_id", "state", "base_price", "final_price", "currency",
		"payment_id", "registration_id", "ticket_id", "failure_reason", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM checkouts\s+WHERE state = ANY\(\$1\) AND updated_at < \$2\s+ORDER BY updated_at\s+LIMIT \$3`).
		WithArgs(pq.Array([]string{"charged", "ticket_issued"}), ts, 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("co-1", "user-1", "ev-1", "ONCE", "disc-1", "ticket_issued", int64(2000), int64(1000), "USD",
			"pay-1", "reg-1", "tkt-1", "", ts.Add(-time.Hour), ts.Add(-time.Hour)))

	got, err := NewCheckoutRepository(db).ListStuck(ctx, []domain.CheckoutState{domain.CheckoutCharged, domain.CheckoutTicketIssued}, ts, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.CheckoutTicketIssued, got[0].State)
	require.Equal(t, "tkt-1", got[0].TicketID)
	require.NoError(t, mock.ExpectationsWereMet())
}
