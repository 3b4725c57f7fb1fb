package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bus_booking?sslmode=disable")
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gochannel", cfg.Events.Driver)
	assert.Equal(t, "schedule", cfg.Booking.FareSource)
	assert.Equal(t, 0.7, cfg.Booking.SeniorDiscountFactor)
	assert.Equal(t, 15, cfg.Payment.ExpireMinutes)
	assert.Equal(t, 2*time.Hour, cfg.Jobs.StalePaymentAge)
	assert.Equal(t, 5, cfg.Security.LoginMaxPerEmail)
	assert.Equal(t, 15*time.Minute, cfg.Security.LoginEmailWindow)
	assert.Equal(t, 90*24*time.Hour, cfg.Jobs.AuditRetention)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("EVENTS_DRIVER", "kafka")
	t.Setenv("BOOKING_SENIOR_FACTOR", "0.3")
	t.Setenv("JOBS_STALE_PAYMENT_AGE", "45m")
	t.Setenv("DATABASE_MAX_CONNECTIONS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, 0.3, cfg.Booking.SeniorDiscountFactor)
	assert.Equal(t, 45*time.Minute, cfg.Jobs.StalePaymentAge)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Environment: "development"},
			Database: DatabaseConfig{URL: "postgres://x"},
			JWT:      JWTConfig{Secret: "a", RefreshSecret: "b"},
			Events:   EventsConfig{Driver: "gochannel"},
			Booking:  BookingConfig{FareSource: "schedule", SeniorDiscountFactor: 0.7},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"missing refresh secret", func(c *Config) { c.JWT.RefreshSecret = "" }, "JWT_REFRESH_SECRET"},
		{"unknown driver", func(c *Config) { c.Events.Driver = "nats" }, "EVENTS_DRIVER"},
		{"unknown fare source", func(c *Config) { c.Booking.FareSource = "both" }, "BOOKING_FARE_SOURCE"},
		{"factor out of range", func(c *Config) { c.Booking.SeniorDiscountFactor = 1.5 }, "BOOKING_SENIOR_FACTOR"},
		{"production without vnpay", func(c *Config) { c.Server.Environment = "production" }, "VNPAY_TMN_CODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
