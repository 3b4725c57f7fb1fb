package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/events"
	"github.com/smarttransit/bus-reservation-backend/internal/handlers"
	"github.com/smarttransit/bus-reservation-backend/internal/logging"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
	"github.com/smarttransit/bus-reservation-backend/pkg/jwt"
	"github.com/smarttransit/bus-reservation-backend/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser := logging.New(cfg.Server, cfg.Log)
	defer logCloser.Close()

	logger.Info("Starting bus reservation backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Event bus for booking side effects
	bus, err := events.Open(cfg.Events, logger)
	if err != nil {
		logger.Fatalf("Failed to open event bus: %v", err)
	}
	defer bus.Close()
	logger.WithField("driver", cfg.Events.Driver).Info("Event bus ready")

	// Repositories
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	routeRepository := database.NewRouteRepository(db)
	busTypeRepository := database.NewBusTypeRepository(db)
	busRepository := database.NewBusRepository(db)
	priceListRepository := database.NewPriceListRepository(db)
	scheduleRepository := database.NewScheduleRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	paymentRepository := database.NewPaymentRepository(db)
	cancellationRepository := database.NewCancellationRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	fares := services.NewFarePolicy(cfg.Booking.SeniorDiscountFactor)
	inventory := services.NewInventoryTracker(scheduleRepository, logger)
	vnpay := services.NewVNPayService(&cfg.Payment, logger)

	loginLimiter := services.NewRateLimitService(db, services.LoginLimits{
		MaxPerEmail: cfg.Security.LoginMaxPerEmail,
		EmailWindow: cfg.Security.LoginEmailWindow,
		MaxPerIP:    cfg.Security.LoginMaxPerIP,
		IPWindow:    cfg.Security.LoginIPWindow,
	})
	securityAudit := services.NewAuditService(db)
	authService := services.NewAuthService(userRepository, refreshTokenRepository, jwtService, logger).
		WithBcryptCost(cfg.Security.BcryptCost).
		WithLoginLimiter(loginLimiter).
		WithAuditor(securityAudit)
	catalogService := services.NewCatalogService(
		routeRepository,
		busTypeRepository,
		busRepository,
		priceListRepository,
		scheduleRepository,
		fares,
		logger,
	)
	scheduleService := services.NewScheduleService(
		db,
		scheduleRepository,
		busRepository,
		routeRepository,
		inventory,
		fares,
		logger,
	)
	bookingService := services.NewBookingService(
		db,
		bookingRepository,
		scheduleRepository,
		paymentRepository,
		inventory,
		fares,
		cfg.Booking.FareSource,
		bus,
		logger,
	)
	paymentService := services.NewPaymentService(db, paymentRepository, bookingRepository, bookingService, vnpay, logger)
	cancellationService := services.NewCancellationService(
		db,
		cancellationRepository,
		bookingRepository,
		scheduleRepository,
		paymentRepository,
		inventory,
		bookingService,
		vnpay,
		logger,
	)
	ticketService := services.NewTicketService(bookingService)

	smsGateway := sms.New(sms.Config{
		Mode:     cfg.SMS.Mode,
		APIURL:   cfg.SMS.APIURL,
		APIKey:   cfg.SMS.APIKey,
		SenderID: cfg.SMS.SenderID,
	}, logger)
	notificationService := services.NewNotificationService(services.NewMailer(cfg.Mail, logger), smsGateway, logger)

	ctx, stopSubscribers := context.WithCancel(context.Background())
	defer stopSubscribers()
	if err := notificationService.Subscribe(ctx, bus); err != nil {
		logger.Fatalf("Failed to subscribe notifications: %v", err)
	}

	// Background jobs
	cronService := services.NewCronService(cfg.Jobs, inventory, paymentService, refreshTokenRepository, logger)
	cronService.Register(services.JobCleanupLogins, cfg.Jobs.CleanupLoginsSpec, loginLimiter.Cleanup)
	cronService.Register(services.JobCleanupAudit, cfg.Jobs.CleanupAuditSpec, func() (int64, error) {
		return securityAudit.Cleanup(cfg.Jobs.AuditRetention)
	})
	if cfg.Jobs.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		logger.Info("Cron service started")
	}

	logger.Info("Services initialized")

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	paymentAudits := database.NewPaymentAuditRepository(db, logger)

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authService),
		Routes:        handlers.NewRouteHandler(catalogService),
		Buses:         handlers.NewBusHandler(catalogService),
		Schedules:     handlers.NewScheduleHandler(scheduleService),
		Bookings:      handlers.NewBookingHandler(bookingService, cancellationService, ticketService),
		Payments:      handlers.NewPaymentHandler(paymentService, &cfg.Payment, paymentAudits, logger),
		Cancellations: handlers.NewCancellationHandler(cancellationService),
		Admin:         handlers.NewAdminHandler(cronService, authService, paymentAudits, securityAudit, logger),
	}, db, jwtService, logger, version)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	stopSubscribers()

	logger.Info("Server exited successfully")
}
