package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

const (
	attemptByEmail = "email"
	attemptByIP    = "ip"
)

// LoginLimits bounds failed sign-in attempts
type LoginLimits struct {
	MaxPerEmail int           // failures allowed per email
	EmailWindow time.Duration // window for the email limit
	MaxPerIP    int           // failures allowed per client IP
	IPWindow    time.Duration // window for the IP limit
}

// DefaultLoginLimits returns the default sign-in limits
func DefaultLoginLimits() LoginLimits {
	return LoginLimits{
		MaxPerEmail: 5,
		EmailWindow: 15 * time.Minute,
		MaxPerIP:    20,
		IPWindow:    time.Hour,
	}
}

// RateLimitService throttles sign-in by counting recent failures in login_attempts
type RateLimitService struct {
	db     database.DB
	limits LoginLimits
	now    func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, limits LoginLimits) *RateLimitService {
	return &RateLimitService{
		db:     db,
		limits: limits,
		now:    time.Now,
	}
}

// CheckLogin returns a RateLimitError when the email or IP is locked out
func (s *RateLimitService) CheckLogin(email, ip string) error {
	if email != "" {
		if err := s.check(normalizeEmail(email), attemptByEmail, s.limits.MaxPerEmail, s.limits.EmailWindow); err != nil {
			return err
		}
	}
	if ip != "" {
		if err := s.check(ip, attemptByIP, s.limits.MaxPerIP, s.limits.IPWindow); err != nil {
			return err
		}
	}
	return nil
}

func (s *RateLimitService) check(identifier, identifierType string, max int, window time.Duration) error {
	count, lastAttempt, err := s.countAttempts(identifier, identifierType, window)
	if err != nil {
		return fmt.Errorf("failed to check %s rate limit: %w", identifierType, err)
	}
	if count >= max {
		return &models.RateLimitError{Scope: identifierType, RetryAfter: lastAttempt.Add(window)}
	}
	return nil
}

func (s *RateLimitService) countAttempts(identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM login_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3
	`

	var count int
	var lastAttempt time.Time
	err := s.db.QueryRow(query, identifier, identifierType, s.now().Add(-window)).Scan(&count, &lastAttempt)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, err
	}
	return count, lastAttempt, nil
}

// RecordFailure stores a failed sign-in for both the email and the IP
func (s *RateLimitService) RecordFailure(email, ip string) error {
	if email != "" {
		if err := s.record(normalizeEmail(email), attemptByEmail); err != nil {
			return fmt.Errorf("failed to record email attempt: %w", err)
		}
	}
	if ip != "" {
		if err := s.record(ip, attemptByIP); err != nil {
			return fmt.Errorf("failed to record IP attempt: %w", err)
		}
	}
	return nil
}

func (s *RateLimitService) record(identifier, identifierType string) error {
	_, err := s.db.Exec(`
		INSERT INTO login_attempts (identifier, identifier_type, created_at)
		VALUES ($1, $2, $3)`, identifier, identifierType, s.now())
	return err
}

// Reset forgets the failures of an email after a successful sign-in
func (s *RateLimitService) Reset(email string) error {
	_, err := s.db.Exec(`DELETE FROM login_attempts WHERE identifier = $1 AND identifier_type = $2`,
		normalizeEmail(email), attemptByEmail)
	if err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// Cleanup removes attempts older than the longest window
func (s *RateLimitService) Cleanup() (int64, error) {
	maxWindow := s.limits.IPWindow
	if s.limits.EmailWindow > maxWindow {
		maxWindow = s.limits.EmailWindow
	}

	result, err := s.db.Exec(`DELETE FROM login_attempts WHERE created_at < $1`, s.now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup login attempts: %w", err)
	}
	return result.RowsAffected()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
