package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

var bookingRowColumns = []string{
	"id", "schedule_id", "user_id", "passenger_name", "passenger_age",
	"passenger_phone", "passenger_email", "seat_count", "fare_per_seat", "total_amount",
	"status", "version", "created_at", "updated_at",
}

var scheduleDetailColumns = []string{
	"id", "bus_id", "route_id", "departure_time", "arrival_time",
	"available_seats", "price", "created_at", "updated_at",
	"bus_number", "bus_type_id", "bus_type_name", "total_seats",
	"starting_place", "destination_place", "distance", "route_base_price",
}

var seatLockColumns = []string{"id", "departure_time", "available_seats", "total_seats"}

// expectSeatLock queues the FOR UPDATE read of a schedule row
func expectSeatLock(mock sqlmock.Sqlmock, scheduleID uuid.UUID, departure time.Time, available, total int) {
	mock.ExpectQuery(`FOR UPDATE OF s`).
		WithArgs(scheduleID).
		WillReturnRows(sqlmock.NewRows(seatLockColumns).AddRow(scheduleID.String(), departure, available, total))
}

// expectActiveSeats queues the sum of seats held by active bookings
func expectActiveSeats(mock sqlmock.Sqlmock, scheduleID uuid.UUID, seats int) {
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(seat_count\), 0\)`).
		WithArgs(scheduleID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(seats))
}

func expectSetAvailable(mock sqlmock.Sqlmock, scheduleID uuid.UUID, seats int) {
	mock.ExpectExec(`UPDATE schedules SET available_seats`).
		WithArgs(scheduleID, seats).
		WillReturnResult(sqlmock.NewResult(0, 1))
}
