package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// RADIUS
	RadiusAuthPort int
	RadiusAcctPort int
	DefaultSecret  string

	// Admin API
	DashboardPort int

	// Store
	DatabasePath string

	// Redis (optional cache tier; in-process fallback when unset)
	RedisAddr     string
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// Seed admin
	AdminUsername string
	AdminPassword string

	// Logging
	LogLevel string

	// Backup
	BackupDir         string
	BackupFTPHost     string
	BackupFTPPort     int
	BackupFTPUser     string
	BackupFTPPassword string
	BackupFTPPath     string
	BackupRetention   int

	// Session housekeeping
	StaleSessionMinutes int
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback if crypto/rand fails
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// JWT Secret - generate random if not provided
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32) // 64 character hex string
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Admin sessions will not persist across restarts.")
	}

	// Default NAS secret - warn if unset
	defaultSecret := getEnv("DEFAULT_SECRET", "")
	if defaultSecret == "" {
		log.Println("WARNING: DEFAULT_SECRET not set - NAS entries created without an explicit secret will use an insecure default!")
		defaultSecret = "changeme"
	}

	adminPassword := getEnv("ADMIN_PASSWORD", "")
	if adminPassword == "" {
		adminPassword = "admin123"
	}

	return &Config{
		// RADIUS
		RadiusAuthPort: getEnvInt("RADIUS_AUTH_PORT", 1812),
		RadiusAcctPort: getEnvInt("RADIUS_ACCT_PORT", 1813),
		DefaultSecret:  defaultSecret,

		// Admin API
		DashboardPort: getEnvInt("DASHBOARD_PORT", 8080),

		// Store
		DatabasePath: getEnv("DATABASE_PATH", "radiusd.db"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		// JWT
		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		// Seed admin
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: adminPassword,

		// Logging
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		// Backup
		BackupDir:         getEnv("BACKUP_DIR", ""),
		BackupFTPHost:     getEnv("BACKUP_FTP_HOST", ""),
		BackupFTPPort:     getEnvInt("BACKUP_FTP_PORT", 21),
		BackupFTPUser:     getEnv("BACKUP_FTP_USER", ""),
		BackupFTPPassword: getEnv("BACKUP_FTP_PASSWORD", ""),
		BackupFTPPath:     getEnv("BACKUP_FTP_PATH", ""),
		BackupRetention:   getEnvInt("BACKUP_RETENTION", 7),

		// Session housekeeping
		StaleSessionMinutes: getEnvInt("STALE_SESSION_MINUTES", 30),
	}
}

// Debug reports whether per-packet debug logging is enabled
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// TokenTTL returns the dashboard token lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
