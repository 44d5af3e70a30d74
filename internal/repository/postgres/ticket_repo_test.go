package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"smartevents/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestTicketRepository_Create(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr error
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO tickets`).
					WithArgs("pay-1", "ev-1", "user-1", int64(1800), "USD", "paid", "SAVE10", ts, ts).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tk-1"))
			},
			wantID: "tk-1",
		},
		{
			name: "second ticket for the same payment",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO tickets`).WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: domain.ErrDuplicateTicket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			tk := &domain.Ticket{
				PaymentID: "pay-1", EventID: "ev-1", AttendeeID: "user-1", Price: 1800, Currency: "USD",
				Status: domain.TicketPaid, DiscountCode: "SAVE10", CreatedAt: ts, UpdatedAt: ts,
			}
			err = NewTicketRepository(db).Create(ctx, tk)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, tk.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTicketRepository_GetByPaymentIDAndVoid(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "payment_id", "event_id", "attendee_id", "price", "currency", "status", "discount_code", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM tickets WHERE payment_id = \$1`).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("tk-1", "pay-1", "ev-1", "user-1", int64(1800), "USD", "paid", "", ts, ts))
	mock.ExpectExec(`UPDATE tickets SET status = \$2`).
		WithArgs("tk-1", "void", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM tickets WHERE payment_id = \$1`).
		WithArgs("pay-2").
		WillReturnError(sql.ErrNoRows)

	repo := NewTicketRepository(db)
	tk, err := repo.GetByPaymentID(ctx, "pay-1")
	require.NoError(t, err)
	require.Equal(t, domain.TicketPaid, tk.Status)
	require.NoError(t, repo.UpdateStatus(ctx, tk.ID, domain.TicketVoid, ts))

	_, err = repo.GetByPaymentID(ctx, "pay-2")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
