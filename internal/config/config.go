// Package config loads runtime configuration from DOCVAULT_* environment
// variables, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SMTP carries outbound mail settings. An empty Host disables mail.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether mail delivery is configured.
func (s SMTP) Enabled() bool { return s.Host != "" }

// SharePoint carries Microsoft Graph credentials for the drive sync job.
// An empty TenantID disables the job.
type SharePoint struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	Interval     time.Duration
}

// Enabled reports whether the sync job is configured.
func (s SharePoint) Enabled() bool {
	return s.TenantID != "" && s.ClientID != "" && s.ClientSecret != "" && s.DriveID != ""
}

// Config holds all runtime settings.
type Config struct {
	Addr        string
	Env         string
	DatabaseDSN string
	AuthSecret  string
	AuthIssuer  string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RateBurst   int
	RatePerSec  float64
	UploadDir   string
	SMTP        SMTP
	SharePoint  SharePoint
}

// Load reads the .env file if present, then the environment. The database
// DSN and auth secret are the only hard requirements.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        fallback(os.Getenv("DOCVAULT_ADDR"), ":8080"),
		Env:         fallback(os.Getenv("DOCVAULT_ENV"), "dev"),
		DatabaseDSN: strings.TrimSpace(os.Getenv("DOCVAULT_PG_DSN")),
		AuthSecret:  strings.TrimSpace(os.Getenv("DOCVAULT_AUTH_SECRET")),
		AuthIssuer:  fallback(os.Getenv("DOCVAULT_AUTH_ISSUER"), "docvault"),
		AccessTTL:   duration(os.Getenv("DOCVAULT_ACCESS_TTL"), 15*time.Minute),
		RefreshTTL:  duration(os.Getenv("DOCVAULT_REFRESH_TTL"), 7*24*time.Hour),
		RateBurst:   intval(os.Getenv("DOCVAULT_RATE_BURST"), 40),
		RatePerSec:  floatval(os.Getenv("DOCVAULT_RATE_PER_SEC"), 20),
		UploadDir:   fallback(os.Getenv("DOCVAULT_UPLOAD_DIR"), "uploads"),
		SMTP: SMTP{
			Host:     strings.TrimSpace(os.Getenv("DOCVAULT_SMTP_HOST")),
			Port:     intval(os.Getenv("DOCVAULT_SMTP_PORT"), 587),
			Username: strings.TrimSpace(os.Getenv("DOCVAULT_SMTP_USERNAME")),
			Password: os.Getenv("DOCVAULT_SMTP_PASSWORD"),
			From:     strings.TrimSpace(os.Getenv("DOCVAULT_SMTP_FROM")),
		},
		SharePoint: SharePoint{
			TenantID:     strings.TrimSpace(os.Getenv("DOCVAULT_SP_TENANT_ID")),
			ClientID:     strings.TrimSpace(os.Getenv("DOCVAULT_SP_CLIENT_ID")),
			ClientSecret: os.Getenv("DOCVAULT_SP_CLIENT_SECRET"),
			DriveID:      strings.TrimSpace(os.Getenv("DOCVAULT_SP_DRIVE_ID")),
			Interval:     duration(os.Getenv("DOCVAULT_SP_INTERVAL"), time.Hour),
		},
	}

	if cfg.DatabaseDSN == "" {
		return Config{}, errors.New("DOCVAULT_PG_DSN is required")
	}
	if cfg.AuthSecret == "" {
		return Config{}, errors.New("DOCVAULT_AUTH_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return Config{}, fmt.Errorf("DOCVAULT_ENV must be dev or prod, got %q", cfg.Env)
	}
	return cfg, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func duration(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
		return d
	}
	return def
}

func intval(value string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
		return n
	}
	return def
}

func floatval(value string, def float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && f > 0 {
		return f
	}
	return def
}
