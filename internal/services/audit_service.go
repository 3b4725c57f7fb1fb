package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/utils"
)

// Account security actions
const (
	AuditRegister       = "register"
	AuditLogin          = "login"
	AuditLoginFailed    = "login_failed"
	AuditLoginThrottled = "login_rate_limited"
	AuditTokenRefresh   = "token_refresh"
	AuditTokenReuse     = "refresh_token_reuse"
	AuditRolesUpdated   = "roles_updated"
)

// AuditEvent is a security event to be logged
type AuditEvent struct {
	UserID    *uuid.UUID // nil before authentication
	Action    string
	IPAddress string
	UserAgent string
	Details   models.JSONB
}

// AuditService writes account security events to audit_logs
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// Log stores an event together with the parsed client device
func (s *AuditService) Log(event AuditEvent) error {
	details := models.JSONB{}
	for k, v := range event.Details {
		details[k] = v
	}
	if event.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(event.UserAgent)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := s.db.Exec(query, event.UserID, event.Action, event.IPAddress, event.UserAgent, details)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// RecentEvents returns the latest events of a user, newest first
func (s *AuditService) RecentEvents(userID uuid.UUID, limit int) ([]models.AuditLog, error) {
	query := `
		SELECT id, user_id, action, ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	events := []models.AuditLog{}
	if err := s.db.Select(&events, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return events, nil
}

// Cleanup removes events older than olderThan
func (s *AuditService) Cleanup(olderThan time.Duration) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}
	return result.RowsAffected()
}
