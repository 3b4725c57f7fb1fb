package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	callback  *GatewayCallback
	urls      []PaymentURLRequest
	refunds   []RefundRequest
	refundErr error
}

func (g *fakeGateway) CreatePaymentURL(req PaymentURLRequest) (string, error) {
	g.urls = append(g.urls, req)
	return "https://pay.example/" + req.OrderRef, nil
}

func (g *fakeGateway) ParseCallback(url.Values) (*GatewayCallback, error) {
	if g.callback == nil {
		return nil, ErrInvalidSignature
	}
	return g.callback, nil
}

func (g *fakeGateway) Refund(_ context.Context, req RefundRequest) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return nil
}

var paymentRowColumns = []string{
	"id", "booking_id", "amount", "method", "status", "payment_code",
	"gateway_transaction_no", "created_at", "updated_at",
}

func newTestCancellationService(db *database.PostgresDB, gateway PaymentGateway, now time.Time) *CancellationService {
	schedules := database.NewScheduleRepository(db)
	bookings := database.NewBookingRepository(db)
	inventory := NewInventoryTracker(schedules, quietLogger())
	payments := database.NewPaymentRepository(db)
	booking := NewBookingService(db, bookings, schedules, payments, inventory, DefaultFarePolicy(), "", nil, quietLogger())
	svc := NewCancellationService(
		db,
		database.NewCancellationRepository(db),
		bookings,
		schedules,
		payments,
		inventory,
		booking,
		gateway,
		quietLogger(),
	)
	svc.now = func() time.Time { return now }
	return svc
}

type cancelFixture struct {
	bookingID  uuid.UUID
	scheduleID uuid.UUID
	userID     uuid.UUID
	departure  time.Time
}

func expectBookingForUpdate(mock sqlmock.Sqlmock, f cancelFixture, status models.BookingStatus) {
	created := f.departure.Add(-72 * time.Hour)
	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(f.bookingID).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
			f.bookingID.String(), f.scheduleID.String(), f.userID.String(), "Le Van Cuong", 40,
			"0912345678", "cuong@example.com", 2, "150000", "300000", string(status), 1, created, created,
		))
}

// expectCompletedPayment queues the lookup of a captured payment; an empty
// code means the booking was never paid
func expectCompletedPayment(mock sqlmock.Sqlmock, f cancelFixture, code, txnNo string) {
	q := mock.ExpectQuery(`WHERE booking_id = \$1 AND status = 'Completed'`).WithArgs(f.bookingID)
	if code == "" {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	paidAt := f.departure.Add(-48 * time.Hour)
	q.WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
		uuid.NewString(), f.bookingID.String(), "300000", "VNPay", "Completed", code, txnNo, paidAt, paidAt,
	))
}

func expectVoidPending(mock sqlmock.Sqlmock, f cancelFixture, voided int64) {
	mock.ExpectExec(`UPDATE payments SET status = 'Voided'`).
		WithArgs(f.bookingID).
		WillReturnResult(sqlmock.NewResult(0, voided))
}

// expectCancel queues every statement of a cancellation up to the gateway call
func expectCancel(mock sqlmock.Sqlmock, f cancelFixture, refund string, percent int, paidCode string, refunded bool) {
	mock.ExpectBegin()
	expectBookingForUpdate(mock, f, models.BookingStatusBooked)
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(f.bookingID, models.BookingStatusBooked, models.BookingStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCompletedPayment(mock, f, paidCode, "14012345")
	expectVoidPending(mock, f, 0)
	mock.ExpectExec(`INSERT INTO cancellations`).
		WithArgs(sqlmock.AnyArg(), f.bookingID, dec(refund), percent, nil, refunded, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	expectActiveSeats(mock, f.scheduleID, 8)
	expectSetAvailable(mock, f.scheduleID, 32)
}

func newCancelFixture(now time.Time, hoursToDeparture float64) cancelFixture {
	return cancelFixture{
		bookingID:  uuid.New(),
		scheduleID: uuid.New(),
		userID:     uuid.New(),
		departure:  now.Add(time.Duration(hoursToDeparture * float64(time.Hour))),
	}
}

func TestCancellationService_RefundWindows(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		hours   float64
		refund  string
		percent int
	}{
		{"Thirty hours ahead refunds everything", 30, "300000", 100},
		{"Exactly a day ahead refunds everything", 24, "300000", 100},
		{"Ten hours ahead refunds half", 10, "150000", 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			gateway := &fakeGateway{}
			svc := newTestCancellationService(db, gateway, now)
			f := newCancelFixture(now, tc.hours)

			expectCancel(mock, f, tc.refund, tc.percent, "PAY-XYZ789", true)
			mock.ExpectCommit()

			c, err := svc.CancelBooking(context.Background(), f.bookingID, nil, &f.userID, "10.0.0.9")
			require.NoError(t, err)
			assert.Equal(t, tc.percent, c.RefundPercent)
			assert.True(t, dec(tc.refund).Equal(c.RefundAmount))
			assert.True(t, c.Refunded)
			assert.Equal(t, now, c.CancelledAt)

			require.Len(t, gateway.refunds, 1)
			refund := gateway.refunds[0]
			assert.Equal(t, "PAY-XYZ789", refund.OrderRef)
			assert.Equal(t, "14012345", refund.TransactionNo)
			assert.True(t, dec(tc.refund).Equal(refund.Amount))
			assert.Equal(t, tc.percent == 100, refund.FullAmount)
			assert.Equal(t, "10.0.0.9", refund.ClientIP)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancellationService_UnpaidBookingSkipsGateway(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	for _, hours := range []float64{30, 10} {
		db, mock := newMockDB(t)
		gateway := &fakeGateway{}
		svc := newTestCancellationService(db, gateway, now)
		f := newCancelFixture(now, hours)

		amount, percent := models.CalculateRefund(dec("300000"), hours)
		expectCancel(mock, f, amount.String(), percent, "", false)
		mock.ExpectCommit()

		c, err := svc.CancelBooking(context.Background(), f.bookingID, nil, &f.userID, "10.0.0.9")
		require.NoError(t, err)
		assert.Equal(t, percent, c.RefundPercent)
		assert.True(t, amount.Equal(c.RefundAmount))
		assert.False(t, c.Refunded)
		assert.Empty(t, gateway.refunds, "gateway called for a booking that was never paid")
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestCancellationService_VoidsPendingPayments(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	gateway := &fakeGateway{}
	svc := newTestCancellationService(db, gateway, now)
	f := newCancelFixture(now, 30)

	mock.ExpectBegin()
	expectBookingForUpdate(mock, f, models.BookingStatusBooked)
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCompletedPayment(mock, f, "", "")
	expectVoidPending(mock, f, 1)
	mock.ExpectExec(`INSERT INTO cancellations`).
		WithArgs(sqlmock.AnyArg(), f.bookingID, dec("300000"), 100, nil, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	expectActiveSeats(mock, f.scheduleID, 8)
	expectSetAvailable(mock, f.scheduleID, 32)
	mock.ExpectCommit()

	_, err := svc.CancelBooking(context.Background(), f.bookingID, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, gateway.refunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationService_AfterDepartureRefundsNothing(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	gateway := &fakeGateway{}
	svc := newTestCancellationService(db, gateway, now)
	f := newCancelFixture(now, -5)

	reason := "missed the bus"
	mock.ExpectBegin()
	expectBookingForUpdate(mock, f, models.BookingStatusBooked)
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCompletedPayment(mock, f, "PAY-XYZ789", "14012345")
	expectVoidPending(mock, f, 0)
	mock.ExpectExec(`INSERT INTO cancellations`).
		WithArgs(sqlmock.AnyArg(), f.bookingID, dec("0"), 0, &reason, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeatLock(mock, f.scheduleID, f.departure, 30, 40)
	expectActiveSeats(mock, f.scheduleID, 8)
	expectSetAvailable(mock, f.scheduleID, 32)
	mock.ExpectCommit()

	c, err := svc.CancelBooking(context.Background(), f.bookingID, &models.CancelBookingRequest{Reason: &reason}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, c.RefundPercent)
	assert.True(t, c.RefundAmount.IsZero())
	assert.False(t, c.Refunded)
	assert.Empty(t, gateway.refunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationService_RefundFailureRollsBack(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	gateway := &fakeGateway{refundErr: errors.New("gateway timeout")}
	svc := newTestCancellationService(db, gateway, now)
	f := newCancelFixture(now, 48)

	expectCancel(mock, f, "300000", 100, "PAY-XYZ789", true)
	mock.ExpectRollback()

	_, err := svc.CancelBooking(context.Background(), f.bookingID, nil, nil, "")
	require.Error(t, err)
	assert.True(t, models.IsRefundFailed(err))
	assert.ErrorContains(t, err, "gateway timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Seats taken by a booking come back in full when it is cancelled right away
func TestCancellationService_CreateThenCancelRestoresSeats(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	svc := newTestCancellationService(db, &fakeGateway{}, now)

	const totalSeats, seats = 40, 3
	scheduleID := uuid.New()
	departure := now.Add(72 * time.Hour)
	userID := uuid.New()

	mock.ExpectBegin()
	expectScheduleDetail(mock, scheduleID, departure, 1, "100000")
	expectSeatLock(mock, scheduleID, departure, totalSeats, totalSeats)
	expectActiveSeats(mock, scheduleID, 0)
	expectSetAvailable(mock, scheduleID, totalSeats-seats)
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	detail, err := svc.booking.CreateBooking(newCreateRequest(scheduleID, seats, 30), &userID)
	require.NoError(t, err)

	f := cancelFixture{bookingID: detail.ID, scheduleID: scheduleID, userID: userID, departure: departure}
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(detail.ID).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
			detail.ID.String(), scheduleID.String(), userID.String(), detail.Name, detail.Age,
			detail.Phone, detail.Email, seats, detail.FarePerSeat.String(), detail.TotalAmount.String(),
			"Booked", 1, now, now,
		))
	expectSeatLock(mock, scheduleID, departure, totalSeats-seats, totalSeats)
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(detail.ID, models.BookingStatusBooked, models.BookingStatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCompletedPayment(mock, f, "", "")
	expectVoidPending(mock, f, 0)
	mock.ExpectExec(`INSERT INTO cancellations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeatLock(mock, scheduleID, departure, totalSeats-seats, totalSeats)
	expectActiveSeats(mock, scheduleID, 0)
	expectSetAvailable(mock, scheduleID, totalSeats)
	mock.ExpectCommit()

	_, err = svc.CancelBooking(context.Background(), detail.ID, nil, &userID, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancellationService_FinalStatuses(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	for _, status := range []models.BookingStatus{models.BookingStatusCancelled, models.BookingStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := newTestCancellationService(db, &fakeGateway{}, now)
			f := newCancelFixture(now, 48)

			mock.ExpectBegin()
			expectBookingForUpdate(mock, f, status)
			mock.ExpectRollback()

			_, err := svc.CancelBooking(context.Background(), f.bookingID, nil, nil, "")
			assert.True(t, models.IsConflict(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCancellationService_OtherUsersBooking(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	svc := newTestCancellationService(db, &fakeGateway{}, now)
	f := newCancelFixture(now, 48)
	stranger := uuid.New()

	mock.ExpectBegin()
	expectBookingForUpdate(mock, f, models.BookingStatusBooked)
	mock.ExpectRollback()

	_, err := svc.CancelBooking(context.Background(), f.bookingID, nil, &stranger, "")
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
