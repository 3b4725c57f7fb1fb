package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimitService, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewRateLimitService(db, DefaultLoginLimits())
	svc.now = func() time.Time { return now }
	return svc, mock, now
}

func TestRateLimitService_CheckLogin(t *testing.T) {
	svc, mock, now := newTestLimiter(t)

	mock.ExpectQuery(`FROM login_attempts`).
		WithArgs("an@example.com", "email", now.Add(-15*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(2, now))
	mock.ExpectQuery(`FROM login_attempts`).
		WithArgs("10.0.0.1", "ip", now.Add(-time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(3, now))

	assert.NoError(t, svc.CheckLogin("  An@Example.com ", "10.0.0.1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitService_CheckLogin_EmailLocked(t *testing.T) {
	svc, mock, now := newTestLimiter(t)
	last := now.Add(-5 * time.Minute)

	mock.ExpectQuery(`FROM login_attempts`).
		WithArgs("an@example.com", "email", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(5, last))

	err := svc.CheckLogin("an@example.com", "10.0.0.1")
	require.True(t, models.IsRateLimited(err))

	var limited *models.RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, "email", limited.Scope)
	assert.Equal(t, last.Add(15*time.Minute), limited.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitService_CheckLogin_StoreError(t *testing.T) {
	svc, mock, _ := newTestLimiter(t)

	mock.ExpectQuery(`FROM login_attempts`).WillReturnError(errors.New("connection reset"))

	err := svc.CheckLogin("", "10.0.0.1")
	require.Error(t, err)
	assert.False(t, models.IsRateLimited(err))
}

func TestRateLimitService_RecordResetCleanup(t *testing.T) {
	svc, mock, now := newTestLimiter(t)

	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs("an@example.com", "email", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs("10.0.0.1", "ip", now).
		WillReturnResult(sqlmock.NewResult(2, 1))
	require.NoError(t, svc.RecordFailure("AN@example.com", "10.0.0.1"))

	mock.ExpectExec(`DELETE FROM login_attempts WHERE identifier = \$1 AND identifier_type = \$2`).
		WithArgs("an@example.com", "email").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, svc.Reset("an@example.com"))

	mock.ExpectExec(`DELETE FROM login_attempts WHERE created_at < \$1`).
		WithArgs(now.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 12))
	removed, err := svc.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
