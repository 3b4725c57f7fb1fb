package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
	"github.com/smarttransit/bus-reservation-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "name", "email", "phone", "password_hash", "roles", "created_at", "updated_at"}

var refreshTokenColumns = []string{
	"id", "user_id", "token_hash", "ip_address", "user_agent", "created_at",
	"expires_at", "last_used_at", "revoked", "revoked_at",
}

func setupAuthRouter(db *database.PostgresDB, jwtService *jwt.Service) *gin.Engine {
	auth := services.NewAuthService(
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		jwtService,
		quietLogger(),
	)
	h := NewAuthHandler(auth)

	router := gin.New()
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.Refresh)
	router.POST("/auth/logout", h.Logout)
	router.GET("/auth/me", middleware.AuthMiddleware(jwtService, quietLogger()), h.Me)
	return router
}

func TestAuthHandler_Login_UnknownEmail(t *testing.T) {
	db, mock := newMockDB(t)
	router := setupAuthRouter(db, newTestJWT())

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	w := doRequest(router, http.MethodPost, "/auth/login",
		models.LoginRequest{Email: "ghost@example.com", Password: "secret123"}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_MalformedBody(t *testing.T) {
	db, _ := newMockDB(t)
	router := setupAuthRouter(db, newTestJWT())

	w := doRequest(router, http.MethodPost, "/auth/login", map[string]interface{}{"email": 42}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
}

func TestAuthHandler_Refresh_RevokedTokenEndsAllSessions(t *testing.T) {
	db, mock := newMockDB(t)
	jwtService := newTestJWT()
	router := setupAuthRouter(db, jwtService)

	userID := uuid.New()
	token, _, err := jwtService.GenerateRefreshToken(userID, "user@example.com")
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`FROM refresh_tokens\s+WHERE token_hash = \$1`).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uuid.NewString(), userID.String(), "hash", nil, nil, now.Add(-time.Hour),
			now.Add(24*time.Hour), nil, true, now.Add(-time.Minute),
		))
	mock.ExpectExec(`UPDATE refresh_tokens\s+SET revoked = TRUE, revoked_at = \$1\s+WHERE user_id = \$2`).
		WithArgs(sqlmock.AnyArg(), userID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	w := doRequest(router, http.MethodPost, "/auth/refresh", models.RefreshTokenRequest{RefreshToken: token}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Refresh_InvalidToken(t *testing.T) {
	db, mock := newMockDB(t)
	router := setupAuthRouter(db, newTestJWT())

	w := doRequest(router, http.MethodPost, "/auth/refresh", models.RefreshTokenRequest{RefreshToken: "garbage"}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Logout(t *testing.T) {
	db, mock := newMockDB(t)
	router := setupAuthRouter(db, newTestJWT())

	mock.ExpectExec(`UPDATE refresh_tokens\s+SET revoked = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := doRequest(router, http.MethodPost, "/auth/logout", models.RefreshTokenRequest{RefreshToken: "unknown"}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Me(t *testing.T) {
	db, mock := newMockDB(t)
	jwtService := newTestJWT()
	router := setupAuthRouter(db, jwtService)

	userID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			userID.String(), "Tran Thi Binh", "binh@example.com", "0987654321", "hash", `{customer}`, now, now,
		))

	w := doRequest(router, http.MethodGet, "/auth/me", nil, bearer(t, jwtService, userID, models.RoleCustomer))
	require.Equal(t, http.StatusOK, w.Code)

	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "binh@example.com", user["email"])
	assert.NotContains(t, w.Body.String(), "password_hash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type lockedLimiter struct {
	retryAfter time.Time
	failures   int
}

func (l *lockedLimiter) CheckLogin(email, _ string) error {
	if email == "locked@example.com" {
		return &models.RateLimitError{Scope: "email", RetryAfter: l.retryAfter}
	}
	return nil
}

func (l *lockedLimiter) RecordFailure(string, string) error {
	l.failures++
	return nil
}

func (l *lockedLimiter) Reset(string) error { return nil }

func TestAuthHandler_Login_RateLimited(t *testing.T) {
	db, mock := newMockDB(t)
	jwtService := newTestJWT()
	limiter := &lockedLimiter{retryAfter: time.Now().Add(10 * time.Minute)}
	auth := services.NewAuthService(
		database.NewUserRepository(db),
		database.NewRefreshTokenRepository(db),
		jwtService,
		quietLogger(),
	).WithLoginLimiter(limiter)
	router := gin.New()
	router.POST("/auth/login", NewAuthHandler(auth).Login)

	w := doRequest(router, http.MethodPost, "/auth/login",
		models.LoginRequest{Email: "locked@example.com", Password: "secret123"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "TOO_MANY_ATTEMPTS", decodeError(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	w = doRequest(router, http.MethodPost, "/auth/login",
		models.LoginRequest{Email: "ghost@example.com", Password: "secret123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, limiter.failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}
