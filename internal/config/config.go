package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Security SecurityConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Outbound notifications
	Mail MailConfig
	SMS  SMSConfig

	Events  EventsConfig
	Jobs    JobsConfig
	Booking BookingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// LogConfig controls the optional rotating log file
type LogConfig struct {
	File       string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool

	// Failed sign-in throttling
	LoginMaxPerEmail int
	LoginEmailWindow time.Duration
	LoginMaxPerIP    int
	LoginIPWindow    time.Duration
}

// PaymentConfig holds VNPay configuration
type PaymentConfig struct {
	TmnCode       string // merchant terminal code issued by VNPay
	HashSecret    string // HMAC-SHA512 secret (never exposed to clients)
	PayURL        string
	RefundURL     string // merchant_webapi endpoint; empty simulates refunds
	ReturnURL     string // where VNPay redirects the customer (our callback)
	SuccessURL    string // frontend page after a successful payment
	FailureURL    string // frontend page after a failed payment
	Locale        string
	CurrencyCode  string
	ExpireMinutes int
}

// MailConfig holds SMTP settings for booking notifications
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	Mode     string // "dev" logs messages, "production" sends them
	APIURL   string
	APIKey   string
	SenderID string
}

// EventsConfig selects the transport for domain events
type EventsConfig struct {
	Driver        string // gochannel, redis, kafka
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KafkaBrokers  []string
	ConsumerGroup string
}

// JobsConfig holds cron specs (with seconds field) for background jobs
type JobsConfig struct {
	Enabled            bool
	ReconcileSeatsSpec string
	StalePaymentsSpec  string
	StalePaymentAge    time.Duration
	CleanupTokensSpec  string
	RevokedTokenTTL    time.Duration
	CleanupLoginsSpec  string
	CleanupAuditSpec   string
	AuditRetention     time.Duration
}

// BookingConfig holds fare policy knobs
type BookingConfig struct {
	SeniorDiscountFactor float64 // share of the fare paid by passengers over 50
	FareSource           string  // "schedule" (stored price) or "route" (recomputed)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 7),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			LoginMaxPerEmail: getEnvAsInt("LOGIN_MAX_PER_EMAIL", 5),
			LoginEmailWindow: getEnvAsDuration("LOGIN_EMAIL_WINDOW", 15*time.Minute),
			LoginMaxPerIP:    getEnvAsInt("LOGIN_MAX_PER_IP", 20),
			LoginIPWindow:    getEnvAsDuration("LOGIN_IP_WINDOW", time.Hour),
		},
		Payment: PaymentConfig{
			TmnCode:       getEnv("VNPAY_TMN_CODE", ""),
			HashSecret:    getEnv("VNPAY_HASH_SECRET", ""),
			PayURL:        getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			RefundURL:     getEnv("VNPAY_REFUND_URL", ""),
			ReturnURL:     getEnv("VNPAY_RETURN_URL", "http://localhost:8080/api/v1/payments/vnpay/callback"),
			SuccessURL:    getEnv("PAYMENT_SUCCESS_URL", "http://localhost:4200/user/success"),
			FailureURL:    getEnv("PAYMENT_FAILURE_URL", "http://localhost:4200/fail"),
			Locale:        getEnv("VNPAY_LOCALE", "vn"),
			CurrencyCode:  getEnv("VNPAY_CURRENCY", "VND"),
			ExpireMinutes: getEnvAsInt("VNPAY_EXPIRE_MINUTES", 15),
		},
		Mail: MailConfig{
			Enabled:  getEnvAsBool("MAIL_ENABLED", false),
			Host:     getEnv("MAIL_SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("MAIL_SMTP_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@busbooking.local"),
		},
		SMS: SMSConfig{
			Mode:     getEnv("SMS_MODE", "dev"),
			APIURL:   getEnv("SMS_API_URL", ""),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", "BusBooking"),
		},
		Events: EventsConfig{
			Driver:        getEnv("EVENTS_DRIVER", "gochannel"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			KafkaBrokers:  getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: getEnv("EVENTS_CONSUMER_GROUP", "bus-booking-notifications"),
		},
		Jobs: JobsConfig{
			Enabled:            getEnvAsBool("JOBS_ENABLED", true),
			ReconcileSeatsSpec: getEnv("JOBS_RECONCILE_SEATS_SPEC", "0 */10 * * * *"),
			StalePaymentsSpec:  getEnv("JOBS_STALE_PAYMENTS_SPEC", "0 0 * * * *"),
			StalePaymentAge:    getEnvAsDuration("JOBS_STALE_PAYMENT_AGE", 2*time.Hour),
			CleanupTokensSpec:  getEnv("JOBS_CLEANUP_TOKENS_SPEC", "0 30 3 * * *"),
			RevokedTokenTTL:    getEnvAsDuration("JOBS_REVOKED_TOKEN_TTL", 30*24*time.Hour),
			CleanupLoginsSpec:  getEnv("JOBS_CLEANUP_LOGINS_SPEC", "0 15 * * * *"),
			CleanupAuditSpec:   getEnv("JOBS_CLEANUP_AUDIT_SPEC", "0 45 3 * * *"),
			AuditRetention:     getEnvAsDuration("JOBS_AUDIT_RETENTION", 90*24*time.Hour),
		},
		Booking: BookingConfig{
			SeniorDiscountFactor: getEnvAsFloat("BOOKING_SENIOR_FACTOR", 0.7),
			FareSource:           getEnv("BOOKING_FARE_SOURCE", "schedule"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Server.Environment == "production" {
		if c.Payment.TmnCode == "" || c.Payment.HashSecret == "" {
			return fmt.Errorf("VNPAY_TMN_CODE and VNPAY_HASH_SECRET are required in production")
		}
		if c.SMS.Mode == "production" && c.SMS.APIURL == "" {
			return fmt.Errorf("SMS_API_URL is required when SMS_MODE=production")
		}
	}

	switch c.Events.Driver {
	case "gochannel", "redis", "kafka":
	default:
		return fmt.Errorf("invalid EVENTS_DRIVER: %s (must be 'gochannel', 'redis' or 'kafka')", c.Events.Driver)
	}

	switch c.Booking.FareSource {
	case "schedule", "route":
	default:
		return fmt.Errorf("invalid BOOKING_FARE_SOURCE: %s (must be 'schedule' or 'route')", c.Booking.FareSource)
	}

	if c.Booking.SeniorDiscountFactor < 0 || c.Booking.SeniorDiscountFactor > 1 {
		return fmt.Errorf("BOOKING_SENIOR_FACTOR must be between 0 and 1")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
