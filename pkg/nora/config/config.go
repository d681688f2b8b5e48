package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const minSecretLength = 16

// Load loads configuration from environment variables with fallback to defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
		fmt.Println("Continuing with environment variables...")
	}

	config := FromEnv()

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FromEnv reads the configuration from the process environment without
// loading a .env file or validating the result.
func FromEnv() *Config {
	jwtSecret := getEnv("JWT_SECRET", "nora-dev-secret-change-in-production")

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("PORT", getEnvInt("SERVER_PORT", 8080)),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			GracefulStop: getEnvInt("SERVER_GRACEFUL_STOP", 30),
			BaseURL:      strings.TrimSuffix(getEnv("NORA_BASE_URL", "http://localhost:8080"), "/"),
			TimeZone:     getEnv("NORA_TIME_ZONE", "UTC"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "nora.db"),
			Username:        getEnv("DB_USERNAME", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		},
		Security: SecurityConfig{
			JWTSecret:           jwtSecret,
			JWTExpirationHours:  getEnvInt("JWT_EXPIRATION_HOURS", 24),
			SessionSecret:       getEnv("SESSION_SECRET", jwtSecret),
			SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "nora_session"),
			SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
			AllowRegistration:   getEnvBool("NORA_ALLOW_REGISTRATION", false),
			AdminEmail:          getEnv("NORA_ADMIN_EMAIL", "admin@nora.local"),
			AdminPassword:       getEnv("NORA_ADMIN_PASSWORD", "changeme"),
			RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
			RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
			RateLimitBurstSize:  getEnvInt("RATE_LIMIT_BURST_SIZE", 10),
			CORSOrigins:         getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/nora.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Notify: NotifyConfig{
			SlackServiceURL: getEnv("NORA_SLACK_SERVICE_URL", "https://hooks.slack.com/services/"),
			WorkerCount:     getEnvInt("NOTIFY_WORKER_COUNT", 2),
			PollInterval:    getEnvInt("NOTIFY_POLL_INTERVAL", 5),
			BatchSize:       getEnvInt("NOTIFY_BATCH_SIZE", 10),
			RequestTimeout:  getEnvInt("NOTIFY_REQUEST_TIMEOUT", 30),
			EnqueueTimeout:  getEnvInt("NOTIFY_ENQUEUE_TIMEOUT", 2),
			RunWorkers:      getEnvBool("NORA_RUN_WORKERS", false),
		},
	}
}

// validateConfig validates required configuration fields
func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	if config.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if len(config.Security.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}

	if len(config.Security.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength)
	}

	if _, err := time.LoadLocation(config.Server.TimeZone); err != nil {
		return fmt.Errorf("invalid NORA_TIME_ZONE %q: %w", config.Server.TimeZone, err)
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}

// GetServerAddr returns the server address string
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location returns the configured time zone, falling back to UTC
func (c *ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollEvery returns the worker polling interval
func (c *NotifyConfig) PollEvery() time.Duration {
	if c.PollInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollInterval) * time.Second
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
