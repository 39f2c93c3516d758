package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every runtime knob read from the environment.
type Config struct {
	HTTPAddr   string
	PGDSN      string
	PolicyPath string

	SessionSecret string
	SessionTTL    time.Duration

	TOTPIssuer string
	TOTPDigits int

	// BiometricEnabled offers the face capture step to enrolled accounts.
	// When off, logins skip straight to the code step.
	BiometricEnabled bool

	LockoutThreshold int
	LockoutWindow    time.Duration

	// StoreTimeout bounds every collaborator call made during a login
	// attempt. A store that does not answer within it turns the attempt
	// into a retryable TransientError rejection.
	StoreTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// Load reads configuration from SECURELOGIN_* environment variables,
// falling back to development defaults.
func Load() Config {
	return Config{
		HTTPAddr:   getenv("SECURELOGIN_HTTP_ADDR", ":8080"),
		PGDSN:      os.Getenv("SECURELOGIN_PG_DSN"),
		PolicyPath: os.Getenv("SECURELOGIN_POLICY_PATH"),

		SessionSecret: getenv("SECURELOGIN_SESSION_SECRET", "dev-secret-change-me"),
		SessionTTL:    getduration("SECURELOGIN_SESSION_TTL", 12*time.Hour),

		TOTPIssuer: getenv("SECURELOGIN_TOTP_ISSUER", "SecureLogin"),
		TOTPDigits: getint("SECURELOGIN_TOTP_DIGITS", 6),

		BiometricEnabled: getenv("SECURELOGIN_BIOMETRIC_ENABLED", "true") == "true",

		LockoutThreshold: getint("SECURELOGIN_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:    getduration("SECURELOGIN_LOCKOUT_WINDOW", 10*time.Minute),

		StoreTimeout: getduration("SECURELOGIN_STORE_TIMEOUT", 5*time.Second),
	}
}
