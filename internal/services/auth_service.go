package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/pkg/jwt"
	"github.com/smarttransit/bus-reservation-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

// ClientInfo identifies the device a session was opened from
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// LoginLimiter throttles repeated failed sign-ins
type LoginLimiter interface {
	CheckLogin(email, ip string) error
	RecordFailure(email, ip string) error
	Reset(email string) error
}

// SecurityAuditor records account security events
type SecurityAuditor interface {
	Log(event AuditEvent) error
}

// AuthService registers customers and issues token pairs
type AuthService struct {
	users         *database.UserRepository
	refreshTokens *database.RefreshTokenRepository
	jwtService    *jwt.Service
	phones        *validator.PhoneValidator
	limiter       LoginLimiter
	audits        SecurityAuditor
	bcryptCost    int
	logger        *logrus.Logger
	now           func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users *database.UserRepository,
	refreshTokens *database.RefreshTokenRepository,
	jwtService *jwt.Service,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		jwtService:    jwtService,
		phones:        validator.NewPhoneValidator(),
		bcryptCost:    bcrypt.DefaultCost,
		logger:        logger,
		now:           time.Now,
	}
}

// WithLoginLimiter enables sign-in throttling
func (s *AuthService) WithLoginLimiter(limiter LoginLimiter) *AuthService {
	s.limiter = limiter
	return s
}

// WithBcryptCost sets the cost of new password hashes; out-of-range values are ignored
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.bcryptCost = cost
	}
	return s
}

// WithAuditor enables the account security audit trail
func (s *AuthService) WithAuditor(audits SecurityAuditor) *AuthService {
	s.audits = audits
	return s
}

// Register creates a customer account and signs it in
func (s *AuthService) Register(req *models.RegisterRequest, client ClientInfo) (*models.TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	phone := ""
	if req.Phone != "" {
		sanitized, err := s.phones.Validate(req.Phone)
		if err != nil {
			return nil, models.NewValidationError("phone", err.Error())
		}
		phone = sanitized
	}

	exists, err := s.users.EmailExists(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &models.ConflictError{Resource: "user", Message: "email is already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        models.NewNullString(phone),
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")
	s.audit(&user.ID, AuditRegister, client, nil)
	return s.issueTokens(user, client)
}

// Login checks credentials and returns a fresh token pair
func (s *AuthService) Login(req *models.LoginRequest, client ClientInfo) (*models.TokenResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.CheckLogin(req.Email, client.IPAddress); err != nil {
			if models.IsRateLimited(err) {
				s.audit(nil, AuditLoginThrottled, client, models.JSONB{"email": req.Email})
				return nil, err
			}
			// fail open when the attempts table is unreachable
			s.logger.WithError(err).Warn("Login rate limit check failed")
		}
	}

	user, err := s.users.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.loginFailed(req.Email, client)
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithField("user_id", user.ID).Warn("Failed login attempt")
		s.loginFailed(req.Email, client)
		return nil, models.ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(req.Email); err != nil {
			s.logger.WithError(err).Warn("Failed to reset login attempts")
		}
	}
	s.audit(&user.ID, AuditLogin, client, nil)
	return s.issueTokens(user, client)
}

func (s *AuthService) loginFailed(email string, client ClientInfo) {
	s.audit(nil, AuditLoginFailed, client, models.JSONB{"email": email})
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(email, client.IPAddress); err != nil {
		s.logger.WithError(err).Warn("Failed to record login attempt")
	}
}

// audit writes a security event; failures are only logged
func (s *AuthService) audit(userID *uuid.UUID, action string, client ClientInfo, details models.JSONB) {
	if s.audits == nil {
		return
	}
	err := s.audits.Log(AuditEvent{
		UserID:    userID,
		Action:    action,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Details:   details,
	})
	if err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("Audit event not recorded")
	}
}

// Refresh exchanges a refresh token for a new pair; the old token is revoked
func (s *AuthService) Refresh(refreshToken string, client ClientInfo) (*models.TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &models.UnauthorizedError{Message: "invalid refresh token"}
	}

	stored, err := s.refreshTokens.Get(refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.UserID != claims.UserID {
		return nil, &models.UnauthorizedError{Message: "refresh token not recognized"}
	}
	if !stored.Usable(s.now()) {
		if stored.Revoked {
			// A revoked token coming back means it leaked; end every session
			s.logger.WithField("user_id", stored.UserID).Warn("Revoked refresh token reused, revoking all sessions")
			s.audit(&stored.UserID, AuditTokenReuse, client, nil)
			if err := s.refreshTokens.RevokeAllForUser(stored.UserID); err != nil {
				s.logger.WithError(err).Error("Failed to revoke sessions")
			}
		}
		return nil, &models.UnauthorizedError{Message: "refresh token is expired or revoked"}
	}

	revoked, err := s.refreshTokens.Revoke(refreshToken)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, &models.UnauthorizedError{Message: "refresh token is expired or revoked"}
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	s.audit(&user.ID, AuditTokenRefresh, client, nil)
	return s.issueTokens(user, client)
}

// Logout revokes a refresh token; unknown tokens are ignored
func (s *AuthService) Logout(refreshToken string) error {
	_, err := s.refreshTokens.Revoke(refreshToken)
	return err
}

// GetUser returns the account behind an access token
func (s *AuthService) GetUser(id uuid.UUID) (*models.User, error) {
	return s.users.GetUserByID(id)
}

// ListUsers pages through accounts
func (s *AuthService) ListUsers(req models.PageRequest) (*models.Page[models.User], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.users.ListUsers(req)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// UpdateRoles replaces the roles of an account
func (s *AuthService) UpdateRoles(id uuid.UUID, roles []string) (*models.User, error) {
	if len(roles) == 0 {
		return nil, models.NewValidationError("roles", "at least one role is required")
	}
	if err := s.users.UpdateRoles(id, roles); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": id, "roles": roles}).Info("User roles updated")
	s.audit(&id, AuditRolesUpdated, ClientInfo{}, models.JSONB{"roles": roles})
	return s.users.GetUserByID(id)
}

func (s *AuthService) issueTokens(user *models.User, client ClientInfo) (*models.TokenResponse, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, refreshExpiresAt, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.refreshTokens.Store(user.ID, refreshToken, client.IPAddress, client.UserAgent, refreshExpiresAt); err != nil {
		return nil, err
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
		User:         user,
	}, nil
}
