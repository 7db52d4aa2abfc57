// Package api serves the pest classification HTTP interface.
package api

import (
	"fmt"
	"time"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxUploadMB     = 10
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	CORS           bool
	AllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxUploadMB bounds the request body and the uploaded image.
	MaxUploadMB int
	// RateLimit is the sustained /predict rate per client IP; 0 disables limiting.
	RateLimit float64

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            5000,
		CORS:            true,
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxUploadMB:     DefaultMaxUploadMB,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	cfg.Host = settings.Server.Host
	cfg.Port = settings.Server.Port
	cfg.CORS = settings.Server.CORS
	cfg.MaxUploadMB = settings.Server.MaxUploadMB
	cfg.RateLimit = settings.Server.RateLimit
	if settings.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = time.Duration(settings.Server.ReadTimeout) * time.Second
	}
	if settings.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = time.Duration(settings.Server.WriteTimeout) * time.Second
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BodyLimit is the echo body limit string, e.g. "10M".
func (c *Config) BodyLimit() string {
	return fmt.Sprintf("%dM", c.MaxUploadMB)
}

func (c *Config) maxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
