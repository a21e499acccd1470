package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 90 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Session and token lifetimes
const (
	SessionTTL       = 24 * time.Hour
	ResetTokenTTL    = time.Hour
	MinPasswordChars = 8
)

// Upstream completion API timeouts
const (
	UpstreamConnectTimeout = 10 * time.Second
	UpstreamTotalTimeout   = 60 * time.Second
)
