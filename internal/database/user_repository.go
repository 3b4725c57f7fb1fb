package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, name, email, phone, password_hash, roles, created_at, updated_at`

var validRoles = map[string]bool{
	models.RoleCustomer: true,
	models.RoleStaff:    true,
	models.RoleAdmin:    true,
}

// CreateUser inserts a user; the customer role is assigned when none is given
func (r *UserRepository) CreateUser(user *models.User) error {
	if len(user.Roles) == 0 {
		user.Roles = pq.StringArray{models.RoleCustomer}
	}
	for _, role := range user.Roles {
		if !validRoles[role] {
			return models.NewValidationError("roles", fmt.Sprintf("invalid role: %s", role))
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, name, email, phone, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(query,
		user.ID, user.Name, user.Email, user.Phone, user.PasswordHash,
		pq.Array([]string(user.Roles)), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapWriteError(err, "user"))
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.Get(&user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.UserNotFound(id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email; nil when no account matches
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.Get(&user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// EmailExists checks if an account already uses the email
func (r *UserRepository) EmailExists(email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	if err := r.db.QueryRow(query, strings.ToLower(strings.TrimSpace(email))).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// UpdateRoles replaces the roles of a user
func (r *UserRepository) UpdateRoles(id uuid.UUID, roles []string) error {
	for _, role := range roles {
		if !validRoles[role] {
			return models.NewValidationError("roles", fmt.Sprintf("invalid role: %s", role))
		}
	}
	result, err := r.db.Exec(`UPDATE users SET roles = $1, updated_at = $2 WHERE id = $3`,
		pq.Array(roles), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update roles: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.UserNotFound(id)
	}
	return nil
}

// ListUsers returns accounts ordered by creation time
func (r *UserRepository) ListUsers(req models.PageRequest) ([]models.User, int, error) {
	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit, args := limitClause(req, nil)
	var users []models.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id` + limit
	if err := r.db.Select(&users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
