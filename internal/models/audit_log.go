package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one account security event
type AuditLog struct {
	ID        int64      `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action    string     `json:"action" db:"action"`
	IPAddress string     `json:"ip_address" db:"ip_address"`
	UserAgent string     `json:"user_agent" db:"user_agent"`
	Details   JSONB      `json:"details,omitempty" db:"details"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
