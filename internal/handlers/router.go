package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/pkg/jwt"
)

// Handlers groups every HTTP handler served under /api/v1
type Handlers struct {
	Auth          *AuthHandler
	Routes        *RouteHandler
	Buses         *BusHandler
	Schedules     *ScheduleHandler
	Bookings      *BookingHandler
	Payments      *PaymentHandler
	Cancellations *CancellationHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the API on router. Catalog reads and the VNPay
// callbacks are public; everything else requires a bearer token.
func RegisterRoutes(router *gin.Engine, h Handlers, db database.DB, jwtService *jwt.Service, logger *logrus.Logger, version string) {
	health := HealthCheck(db, version)
	router.GET("/health", health)

	authRequired := middleware.AuthMiddleware(jwtService, logger)
	operators := middleware.RequireRole(models.RoleStaff, models.RoleAdmin)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.GET("/health", health)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", authRequired, h.Auth.Me)
	}

	routes := v1.Group("/routes")
	{
		routes.GET("", h.Routes.ListRoutes)
		routes.GET("/:id", h.Routes.GetRoute)
		routes.POST("", authRequired, operators, h.Routes.CreateRoute)
		routes.PUT("/:id", authRequired, operators, h.Routes.UpdateRoute)
		routes.DELETE("/:id", authRequired, operators, h.Routes.DeleteRoute)
	}

	prices := v1.Group("/price-lists", authRequired, operators)
	{
		prices.GET("", h.Routes.ListPriceLists)
		prices.POST("", h.Routes.UpsertPriceList)
		prices.DELETE("/:id", h.Routes.DeletePriceList)
	}

	busTypes := v1.Group("/bus-types")
	{
		busTypes.GET("", h.Buses.ListBusTypes)
		busTypes.GET("/:id", h.Buses.GetBusType)
		busTypes.POST("", authRequired, operators, h.Buses.CreateBusType)
		busTypes.PUT("/:id", authRequired, operators, h.Buses.UpdateBusType)
		busTypes.DELETE("/:id", authRequired, operators, h.Buses.DeleteBusType)
	}

	buses := v1.Group("/buses", authRequired, operators)
	{
		buses.GET("", h.Buses.ListBuses)
		buses.GET("/:id", h.Buses.GetBus)
		buses.POST("", h.Buses.CreateBus)
		buses.PUT("/:id", h.Buses.UpdateBus)
		buses.DELETE("/:id", h.Buses.DeleteBus)
	}

	schedules := v1.Group("/schedules")
	{
		schedules.GET("", h.Schedules.ListSchedules)
		schedules.GET("/search", h.Schedules.SearchSchedules)
		schedules.GET("/:id", h.Schedules.GetSchedule)
		schedules.GET("/:id/availability", h.Schedules.Availability)
		schedules.POST("", authRequired, operators, h.Schedules.CreateSchedule)
		schedules.PUT("/:id", authRequired, operators, h.Schedules.UpdateSchedule)
		schedules.DELETE("/:id", authRequired, operators, h.Schedules.DeleteSchedule)
	}

	bookings := v1.Group("/bookings", authRequired)
	{
		bookings.POST("", h.Bookings.CreateBooking)
		bookings.GET("", h.Bookings.ListBookings)
		bookings.GET("/search", h.Bookings.SearchBookings)
		bookings.GET("/:id", h.Bookings.GetBooking)
		bookings.PUT("/:id", h.Bookings.UpdateBooking)
		bookings.DELETE("/:id", adminOnly, h.Bookings.DeleteBooking)
		bookings.POST("/:id/cancel", h.Bookings.CancelBooking)
		bookings.GET("/:id/ticket", h.Bookings.DownloadTicket)
	}

	payments := v1.Group("/payments")
	{
		payments.GET("/vnpay/callback", h.Payments.Callback)
		payments.GET("/vnpay/ipn", h.Payments.IPN)
		payments.POST("", authRequired, h.Payments.CreatePayment)
		payments.GET("", authRequired, h.Payments.ListPayments)
		payments.GET("/:id", authRequired, h.Payments.GetPayment)
	}

	cancellations := v1.Group("/cancellations", authRequired)
	{
		cancellations.GET("", h.Cancellations.ListCancellations)
		cancellations.GET("/:id", h.Cancellations.GetCancellation)
	}

	admin := v1.Group("/admin", authRequired, adminOnly)
	{
		admin.GET("/jobs", h.Admin.GetJobStatus)
		admin.POST("/jobs/:name/run", h.Admin.RunJob)
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id/roles", h.Admin.UpdateUserRoles)
		admin.GET("/users/:id/audit", h.Admin.GetUserAudit)
		admin.GET("/payments/mismatches", h.Admin.ListAmountMismatches)
		admin.GET("/payments/:code/audit", h.Admin.GetPaymentAudit)
	}
}

// HealthCheck reports database reachability
func HealthCheck(db database.DB, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
