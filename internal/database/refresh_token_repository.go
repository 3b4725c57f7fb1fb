package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Store saves the hash of a refresh token issued to a user
func (r *RefreshTokenRepository) Store(userID uuid.UUID, token, ipAddress, userAgent string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(query,
		uuid.New(), userID, hashToken(token),
		models.NewNullString(ipAddress), models.NewNullString(userAgent), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get retrieves a refresh token by its raw value; nil when unknown
func (r *RefreshTokenRepository) Get(token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	query := `
		SELECT id, user_id, token_hash, ip_address, user_agent, created_at,
		       expires_at, last_used_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	if err := r.db.Get(&rt, query, hashToken(token)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &rt, nil
}

// Revoke revokes one token; it reports false when the token was unknown or already revoked
func (r *RefreshTokenRepository) Revoke(token string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $1
		WHERE token_hash = $2 AND revoked = FALSE
	`, time.Now(), hashToken(token))
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// RevokeAllForUser revokes every active token of a user
func (r *RefreshTokenRepository) RevokeAllForUser(userID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $1
		WHERE user_id = $2 AND revoked = FALSE
	`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// Cleanup deletes expired tokens and tokens revoked before now-revokedFor
func (r *RefreshTokenRepository) Cleanup(now time.Time, revokedFor time.Duration) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR (revoked = TRUE AND revoked_at < $2)
	`, now, now.Add(-revokedFor))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
