package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

const defaultAuditLimit = 50

// AdminHandler handles admin-only operations: background jobs, accounts
// and the audit trails
type AdminHandler struct {
	cron     *services.CronService
	auth     *services.AuthService
	audits   *database.PaymentAuditRepository
	security *services.AuditService
	logger   *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	cron *services.CronService,
	auth *services.AuthService,
	audits *database.PaymentAuditRepository,
	security *services.AuditService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		cron:     cron,
		auth:     auth,
		audits:   audits,
		security: security,
		logger:   logger,
	}
}

// GetJobStatus lists registered jobs with their schedule and last run
// GET /api/v1/admin/jobs
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.cron.GetJobStatus()})
}

// RunJob runs a job immediately
// POST /api/v1/admin/jobs/:name/run
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	run, err := h.cron.RunNow(name)
	if err != nil {
		respondError(c, err)
		return
	}

	entry := h.logger.WithField("job", name)
	if userCtx, ok := middleware.GetUserContext(c); ok {
		entry = entry.WithField("admin_id", userCtx.UserID)
	}
	entry.Info("Job triggered manually")

	c.JSON(http.StatusOK, gin.H{"job": name, "run": run})
}

// ListUsers lists accounts
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	users, err := h.auth.ListUsers(page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUserRoles replaces the roles of an account
// PUT /api/v1/admin/users/:id/roles
func (h *AdminHandler) UpdateUserRoles(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateRolesRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.auth.UpdateRoles(id, req.Roles)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUserAudit returns the latest security events of an account
// GET /api/v1/admin/users/:id/audit?limit=
func (h *AdminHandler) GetUserAudit(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	events, err := h.security.RecentEvents(id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "events": events})
}

// GetPaymentAudit returns the audit trail of one payment
// GET /api/v1/admin/payments/:code/audit
func (h *AdminHandler) GetPaymentAudit(c *gin.Context) {
	code := c.Param("code")
	audits, err := h.audits.ListByPaymentCode(code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_code": code, "events": audits})
}

// ListAmountMismatches returns callbacks whose amount disagreed with the payment
// GET /api/v1/admin/payments/mismatches?limit=
func (h *AdminHandler) ListAmountMismatches(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	audits, err := h.audits.AmountMismatches(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": audits})
}

// limitParam reads ?limit, defaulting to 50
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultAuditLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		badRequest(c, "limit must be between 1 and 500")
		return 0, false
	}
	return n, true
}
