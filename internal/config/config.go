package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects the collaborator implementations.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the backoffice service.
type Config struct {
	Backend       string
	DB            DBConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Admin         AdminConfig
	Port          string
	LogLevel      slog.Level
	AllowOrigins  []string
	SwaggerPath   string
	MaxUploadSize int

	// StreamKeepAlive is the interval between keep-alive comments on event
	// streams. A closed client is noticed at the next write.
	StreamKeepAlive time.Duration
}

// DBConfig holds PostgreSQL configuration.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds session and login throttling settings.
type AuthConfig struct {
	SigningKey        string
	SessionTTL        time.Duration
	CookieName        string
	CookieSecure      bool
	LoginRateMax      int
	LoginRateWindow   time.Duration
	SignOutChannel    string
	RevokedKeyPrefix  string
	RateLimitKeyScope string
}

// StorageConfig holds blob storage settings.
type StorageConfig struct {
	PublicBaseURL string
}

// AdminConfig names the administrator created by the seeding command and,
// with the memory backend, at startup.
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	rateMax, _ := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT_MAX", "5"))
	rateWindow, _ := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT_WINDOW_SECONDS", "300"))
	sessionHours, _ := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "12"))
	maxUploadMB, _ := strconv.Atoi(getEnv("MAX_UPLOAD_MB", "10"))
	keepAliveSeconds, _ := strconv.Atoi(getEnv("STREAM_KEEPALIVE_SECONDS", "25"))

	port := getEnv("SERVER_PORT", "8080")

	cfg := &Config{
		Backend: strings.ToLower(getEnv("BACKEND", BackendPostgres)),
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "backoffice"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			SigningKey:        getEnv("SESSION_SIGNING_KEY", ""),
			SessionTTL:        time.Duration(sessionHours) * time.Hour,
			CookieName:        getEnv("SESSION_COOKIE_NAME", "backoffice_session"),
			CookieSecure:      getEnv("SESSION_COOKIE_SECURE", "false") == "true",
			LoginRateMax:      rateMax,
			LoginRateWindow:   time.Duration(rateWindow) * time.Second,
			SignOutChannel:    getEnv("SIGNOUT_CHANNEL", "backoffice:signout"),
			RevokedKeyPrefix:  getEnv("REVOKED_KEY_PREFIX", "backoffice:revoked:"),
			RateLimitKeyScope: getEnv("LOGIN_RATE_LIMIT_SCOPE", "backoffice:login"),
		},
		Storage: StorageConfig{
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "Admin"),
		},
		Port:          port,
		LogLevel:      parseLevel(getEnv("LOG_LEVEL", "info")),
		AllowOrigins:  splitList(getEnv("CORS_ALLOW_ORIGINS", "")),
		SwaggerPath:   getEnv("SWAGGER_PATH", "docs/swagger.yaml"),
		MaxUploadSize: maxUploadMB * 1024 * 1024,

		StreamKeepAlive: time.Duration(keepAliveSeconds) * time.Second,
	}

	if cfg.Backend != BackendPostgres && cfg.Backend != BackendMemory {
		return nil, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
	}
	if cfg.Auth.SigningKey == "" {
		if cfg.Backend == BackendPostgres {
			return nil, fmt.Errorf("SESSION_SIGNING_KEY is required")
		}
		cfg.Auth.SigningKey = "memory-backend-signing-key"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
