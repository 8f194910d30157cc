package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	AI         AIConfig
	Intake     IntakeConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for the append-only audit event store.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// AIConfig holds configuration for the extraction service client.
type AIConfig struct {
	URL     string
	Enabled bool
	// Timeout bounds a single extraction call; on expiry the turn
	// falls back rather than blocking.
	Timeout time.Duration
	// RequestsPerSecond limits outbound calls to the AI service.
	RequestsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

// IntakeConfig holds tuning knobs for the intake conversation flow.
type IntakeConfig struct {
	// DedupWindow is the trailing interval within which an identical
	// user message in the same session is treated as a duplicate.
	DedupWindow time.Duration
	// MaxFollowUps caps follow-up questions per conversational topic.
	MaxFollowUps int
	// ErrorThreshold is the consecutive AI failure count after which
	// the turn skips the AI service and answers with the canned reply.
	ErrorThreshold int
	// ConclusionNudgeAfter is the AI message count after which the
	// session offers to conclude (advisory, not forced).
	ConclusionNudgeAfter int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "carelink"),
			Password: getEnv("DB_PASSWORD", "carelink"),
			Database: getEnv("DB_NAME", "carelink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		AI: AIConfig{
			URL:               getEnv("AI_SERVICE_URL", "http://localhost:5000"),
			Enabled:           getEnvBool("AI_ENABLED", true),
			Timeout:           getEnvDuration("AI_TIMEOUT", 20*time.Second),
			RequestsPerSecond: getEnvFloat("AI_RPS", 10),
			Burst:             getEnvInt("AI_BURST", 20),
		},
		Intake: IntakeConfig{
			DedupWindow:          getEnvDuration("INTAKE_DEDUP_WINDOW", 5*time.Second),
			MaxFollowUps:         getEnvInt("INTAKE_MAX_FOLLOWUPS", 2),
			ErrorThreshold:       getEnvInt("INTAKE_ERROR_THRESHOLD", 3),
			ConclusionNudgeAfter: getEnvInt("INTAKE_CONCLUSION_NUDGE_AFTER", 25),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
