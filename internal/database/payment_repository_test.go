package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentRowColumns = []string{
	"id", "booking_id", "amount", "method", "status", "payment_code",
	"gateway_transaction_no", "created_at", "updated_at",
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	t.Run("Success", func(t *testing.T) {
		p := &models.Payment{
			BookingID:   uuid.New(),
			Amount:      decimal.NewFromInt(220000),
			Method:      "VNPay",
			Status:      models.PaymentStatusPending,
			PaymentCode: "PAY-123456",
		}
		now := time.Now()
		mock.ExpectQuery(`INSERT INTO payments`).
			WithArgs(sqlmock.AnyArg(), p.BookingID, p.Amount, "VNPay", models.PaymentStatusPending, "PAY-123456").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, repo.Create(p))
		assert.NotEqual(t, uuid.Nil, p.ID)
	})

	t.Run("Duplicate Code", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payments`).WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(&models.Payment{PaymentCode: "PAY-123456"})
		assert.True(t, models.IsConflict(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByCodeForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	t.Run("Found", func(t *testing.T) {
		id, bookingID := uuid.New(), uuid.New()
		now := time.Now()
		mock.ExpectQuery(`FROM payments WHERE payment_code = \$1 FOR UPDATE`).
			WithArgs("PAY-000001").
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
				id.String(), bookingID.String(), "220000.00", "VNPay", "Pending", "PAY-000001", nil, now, now,
			))

		p, err := repo.GetByCodeForUpdate(db, "PAY-000001")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, p.Status)
		assert.Nil(t, p.TransactionNo)
	})

	t.Run("Unknown Code", func(t *testing.T) {
		mock.ExpectQuery(`FOR UPDATE`).WithArgs("PAY-999999").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByCodeForUpdate(db, "PAY-999999")
		assert.True(t, models.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	id := uuid.New()
	txn := "14123456"

	mock.ExpectExec(`UPDATE payments`).
		WithArgs(id, models.PaymentStatusCompleted, &txn, models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(db, id, models.PaymentStatusPending, models.PaymentStatusCompleted, &txn))

	mock.ExpectExec(`UPDATE payments`).
		WithArgs(id, models.PaymentStatusFailed, nil, models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(db, id, models.PaymentStatusPending, models.PaymentStatusFailed, nil)
	assert.True(t, models.IsConflict(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_CompletedForBooking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	bookingID := uuid.New()

	t.Run("Unpaid Booking", func(t *testing.T) {
		mock.ExpectQuery(`WHERE booking_id = \$1 AND status = 'Completed'`).
			WithArgs(bookingID).
			WillReturnError(sql.ErrNoRows)

		p, err := repo.CompletedForBooking(db, bookingID)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("Settled Payment", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(`WHERE booking_id = \$1 AND status = 'Completed'`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
				uuid.NewString(), bookingID.String(), "300000", "VNPay", "Completed", "PAY-PAID22", "14000001", now, now,
			))

		p, err := repo.CompletedForBooking(db, bookingID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, models.PaymentStatusCompleted, p.Status)
		assert.Equal(t, "PAY-PAID22", p.PaymentCode)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_VoidPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)
	bookingID := uuid.New()

	mock.ExpectExec(`UPDATE payments SET status = 'Voided'`).
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.VoidPending(db, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
