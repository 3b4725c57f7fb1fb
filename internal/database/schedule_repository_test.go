package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRepository_LockForSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	t.Run("Locks Row", func(t *testing.T) {
		id := uuid.New()
		departure := time.Now().Add(24 * time.Hour)
		mock.ExpectQuery(`FOR UPDATE OF s`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id", "departure_time", "available_seats", "total_seats"}).
				AddRow(id.String(), departure, 12, 40))

		lock, err := repo.LockForSeats(db, id)
		require.NoError(t, err)
		assert.Equal(t, id, lock.ScheduleID)
		assert.Equal(t, 12, lock.AvailableSeats)
		assert.Equal(t, 40, lock.TotalSeats)
	})

	t.Run("Unknown Schedule", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`FOR UPDATE OF s`).WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.LockForSeats(db, id)
		require.Error(t, err)
		assert.True(t, models.IsNotFound(err))
		assert.Equal(t, "schedule "+id.String()+" not found", err.Error())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_ActiveSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	scheduleID, bookingID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(seat_count\), 0\)`).
		WithArgs(scheduleID, bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(7))

	seats, err := repo.ActiveSeats(db, scheduleID, bookingID)
	require.NoError(t, err)
	assert.Equal(t, 7, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_ReconcileAvailableSeats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)

	mock.ExpectExec(`UPDATE schedules s SET available_seats = GREATEST`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ReconcileAvailableSeats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_DriftedSchedules(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`WHERE x.stored_seats <> GREATEST`).
		WillReturnRows(sqlmock.NewRows([]string{"schedule_id", "total_seats", "booked_seats", "stored_seats"}).
			AddRow(id.String(), 40, 10, 40))

	drifted, err := repo.DriftedSchedules()
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, id, drifted[0].ScheduleID)
	assert.Equal(t, 40, drifted[0].StoredSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_Availability(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT x.schedule_id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"schedule_id", "total_seats", "booked_seats", "available_seats"}).
			AddRow(id.String(), 40, 38, 2))

	a, err := repo.Availability(id)
	require.NoError(t, err)
	assert.Equal(t, 2, a.AvailableSeats)
	assert.Equal(t, 38, a.BookedSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_Search(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db)
	date := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM schedules s JOIN routes r`).
		WithArgs("%Hanoi%", "%Sa Pa%", "2026-11-02").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY s.departure_time, s.id$`).
		WithArgs("%Hanoi%", "%Sa Pa%", "2026-11-02").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, total, err := repo.Search(models.ScheduleSearch{
		StartingPlace:    "Hanoi",
		DestinationPlace: "Sa Pa",
		Date:             &date,
	}, models.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
