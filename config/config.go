package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	AWS       AWSConfig
	Email     EmailConfig
	QR        QRConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:5173)
	PublicBaseURL      string // absolute prefix for media URLs in responses and emails; empty = relative
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/ticketing?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig holds staff session token settings.
type SessionConfig struct {
	Secret       string
	ExpireHours  int
	CookieName   string
	CookieSecure bool
}

// AWSConfig holds AWS credentials and the QR artifact bucket. Empty bucket stores artifacts in Postgres.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	QRBucket        string
	PublicRead      bool
}

// EmailConfig for SMTP delivery. Empty SMTPHost logs messages instead of sending them.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	TimeoutSec  int
}

// QRConfig holds QR rendering parameters.
type QRConfig struct {
	Size int
}

// RateLimitConfig caps public endpoints per client IP per minute. Zero disables the limit.
type RateLimitConfig struct {
	RegisterPerMinute int
	VerifyPerMinute   int
	LoginPerMinute    int
}

// WorkerConfig controls the email worker.
type WorkerConfig struct {
	InProcess bool // run the email worker inside the API server
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 15),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 15),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ticketing"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", "change-me-in-production"),
			ExpireHours:  getEnvInt("SESSION_EXPIRE_HOURS", 12),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "sessionid"),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			QRBucket:        getEnv("AWS_S3_QR_BUCKET", ""),
			PublicRead:      getEnvBool("AWS_S3_PUBLIC_READ", false),
		},
		Email: EmailConfig{
			FromAddress: getEnv("DEFAULT_FROM_EMAIL", "no-reply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Event Tickets"),
			SMTPHost:    getEnv("EMAIL_HOST", ""),
			SMTPPort:    getEnvInt("EMAIL_PORT", 587),
			SMTPUser:    getEnv("EMAIL_HOST_USER", ""),
			SMTPPass:    getEnv("EMAIL_HOST_PASSWORD", ""),
			TimeoutSec:  getEnvInt("EMAIL_TIMEOUT_SEC", 15),
		},
		QR: QRConfig{
			Size: getEnvInt("QR_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			RegisterPerMinute: getEnvInt("RATE_LIMIT_REGISTER_PER_MIN", 20),
			VerifyPerMinute:   getEnvInt("RATE_LIMIT_VERIFY_PER_MIN", 120),
			LoginPerMinute:    getEnvInt("RATE_LIMIT_LOGIN_PER_MIN", 10),
		},
		Worker: WorkerConfig{
			InProcess: getEnvBool("EMAIL_WORKER_IN_PROCESS", true),
		},
	}
	if cfg.Session.ExpireHours <= 0 {
		return nil, fmt.Errorf("SESSION_EXPIRE_HOURS must be positive, got %d", cfg.Session.ExpireHours)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// SplitTrim splits s on sep and drops empty entries.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
