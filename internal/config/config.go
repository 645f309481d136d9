package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration. It is loaded once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	LogFile     string
	JWTSecret   string
	CORSOrigins []string

	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Stream    StreamConfig
	Search    SearchConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
	OAuth     OAuthSettings
}

type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether a redis host was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type AWSConfig struct {
	Region     string
	Bucket     string
	CDNBaseURL string
	EmailFrom  string
}

type StreamConfig struct {
	APIKey    string
	APISecret string
}

type SearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	SampleRate     float64
	ServiceVersion string
}

type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

type OAuthSettings struct {
	RedirectURL        string
	GoogleClientID     string
	GoogleClientSecret string
}

// Load reads a .env file when present, then builds the configuration from the
// environment. Only JWT_SECRET is mandatory.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		Port:        getEnvOrDefault("PORT", "8787"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		Database: DatabaseConfig{
			URL:             databaseURL(),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		AWS: AWSConfig{
			Region:     getEnvOrDefault("AWS_REGION", "us-east-1"),
			Bucket:     os.Getenv("AWS_BUCKET"),
			CDNBaseURL: os.Getenv("CDN_BASE_URL"),
			EmailFrom:  getEnvOrDefault("EMAIL_FROM", "no-reply@reelhub.app"),
		},
		Stream: StreamConfig{
			APIKey:    os.Getenv("STREAM_API_KEY"),
			APISecret: os.Getenv("STREAM_API_SECRET"),
		},
		Search: SearchConfig{
			Addresses: splitList(os.Getenv("ELASTICSEARCH_URL")),
			Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRate:     getEnvFloat("OTEL_SAMPLE_RATE", 1.0),
			ServiceVersion: getEnvOrDefault("SERVICE_VERSION", "dev"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getEnvBool("SCHEDULER_ENABLED", true),
			Interval:  getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize: getEnvInt("SCHEDULER_BATCH_SIZE", 50),
		},
		OAuth: OAuthSettings{
			RedirectURL:        os.Getenv("OAUTH_REDIRECT_URL"),
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	// Fallback to individual components
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "postgres"),
		getEnvOrDefault("DB_PASSWORD", ""),
		getEnvOrDefault("DB_NAME", "reelhub"),
		getEnvOrDefault("DB_SSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
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
