package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FCM authentication modes, selected at deploy time via FCM_AUTH_MODE.
const (
	AuthModeKey            = "key"
	AuthModeServiceAccount = "service_account"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
// FCM credentials are validated at dispatch time, not here, so a missing
// credential fails the invocation rather than the process.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// FCM gateway
	FCMAuthMode     string // "key" (legacy HTTP API) or "service_account" (v1 API)
	FCMServerKey    string
	FCMProjectID    string
	FCMClientEmail  string
	FCMPrivateKey   string // PEM-encoded PKCS#8 RSA key; \n escapes are unfolded
	FCMBaseURL      string
	FCMTokenURL     string
	FCMTimeout      time.Duration

	// Dispatch
	BatchSize        int
	DispatchInterval time.Duration // 0 disables the in-process poller
	SendRatePerSec   int           // outbound sends per second per platform
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	mode := getEnv("FCM_AUTH_MODE", AuthModeKey)
	if mode != AuthModeKey && mode != AuthModeServiceAccount {
		return nil, fmt.Errorf("FCM_AUTH_MODE must be %q or %q, got %q",
			AuthModeKey, AuthModeServiceAccount, mode)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		FCMAuthMode:    mode,
		FCMServerKey:   os.Getenv("FCM_SERVER_KEY"),
		FCMProjectID:   os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail: os.Getenv("FCM_CLIENT_EMAIL"),
		// Private keys arrive through env vars with literal "\n" sequences.
		FCMPrivateKey: strings.ReplaceAll(os.Getenv("FCM_PRIVATE_KEY"), `\n`, "\n"),
		FCMBaseURL:    getEnv("FCM_BASE_URL", "https://fcm.googleapis.com"),
		FCMTokenURL:   getEnv("FCM_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		FCMTimeout:    getDuration("FCM_TIMEOUT", 10*time.Second),

		BatchSize:        getInt("DISPATCH_BATCH_SIZE", 10),
		DispatchInterval: getDuration("DISPATCH_INTERVAL", 0),
		SendRatePerSec:   getInt("SEND_RATE_PER_PLATFORM", 100),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
