package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db)
	userID := uuid.New()
	token := "refresh-token-value"
	expires := time.Now().Add(7 * 24 * time.Hour)

	t.Run("Store Hashes Token", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO refresh_tokens`).
			WithArgs(sqlmock.AnyArg(), userID, hashToken(token), "10.0.0.1", nil, expires).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Store(userID, token, "10.0.0.1", "", expires))
		assert.Len(t, hashToken(token), 64)
		assert.NotEqual(t, token, hashToken(token))
	})

	t.Run("Revoke", func(t *testing.T) {
		mock.ExpectExec(`UPDATE refresh_tokens`).
			WithArgs(sqlmock.AnyArg(), hashToken(token)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		ok, err := repo.Revoke(token)
		require.NoError(t, err)
		assert.True(t, ok)

		mock.ExpectExec(`UPDATE refresh_tokens`).
			WithArgs(sqlmock.AnyArg(), hashToken(token)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		ok, err = repo.Revoke(token)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Cleanup", func(t *testing.T) {
		now := time.Now()
		mock.ExpectExec(`DELETE FROM refresh_tokens`).
			WithArgs(now, now.Add(-30*24*time.Hour)).
			WillReturnResult(sqlmock.NewResult(0, 5))

		n, err := repo.Cleanup(now, 30*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
