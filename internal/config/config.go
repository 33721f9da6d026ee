package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Email provider names accepted by EMAIL_PROVIDER.
const (
	EmailProviderAuto     = "auto"
	EmailProviderSMTP     = "smtp"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	DatabaseURL        string
	AppURL             string
	CORSAllowedOrigins []string

	// Submission rate limiting
	RateLimitMax           int
	RateLimitWindow        time.Duration
	RateLimitSweepInterval time.Duration
	ReportRateLimitMax     int
	ReportRateLimitWindow  time.Duration
	HoneypotField          string

	// Geolocation
	GeoLookupURL       string
	GeoLookupTimeout   time.Duration
	GeoLookupPerMinute int
	GeoCacheTTL        time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool

	// Email
	EmailProvider  string
	FromEmail      string
	FromName       string
	AdminEmail     string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendGridAPIKey string

	// AWS (SES)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ReportJWTSecret string

	// Background notifications
	NotifyQueueSize int
	NotifyWorkers   int
	NotifyTimeout   time.Duration

	// Security audit trail
	AuditRetention     time.Duration
	AuditPurgeInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AppURL:             getEnv("APP_URL", "http://localhost:3000"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		RateLimitMax:           getEnvAsInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Hour),
		RateLimitSweepInterval: getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", 10*time.Minute),
		ReportRateLimitMax:     getEnvAsInt("REPORT_RATE_LIMIT_MAX", 60),
		ReportRateLimitWindow:  getEnvAsDuration("REPORT_RATE_LIMIT_WINDOW", time.Minute),
		HoneypotField:          getEnv("HONEYPOT_FIELD", "website"),

		GeoLookupURL:       strings.TrimRight(getEnv("GEO_LOOKUP_URL", "https://ipapi.co"), "/"),
		GeoLookupTimeout:   getEnvAsDuration("GEO_LOOKUP_TIMEOUT", 3*time.Second),
		GeoLookupPerMinute: getEnvAsInt("GEO_LOOKUP_PER_MINUTE", 30),
		GeoCacheTTL:        getEnvAsDuration("GEO_CACHE_TTL", 24*time.Hour),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", EmailProviderAuto))),
		FromEmail:      getEnv("FROM_EMAIL", "noreply@alfredai.bot"),
		FromName:       getEnv("FROM_NAME", "AlfredAI Team"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ReportJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		NotifyQueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 100),
		NotifyWorkers:   getEnvAsInt("NOTIFY_WORKERS", 1),
		NotifyTimeout:   getEnvAsDuration("NOTIFY_TIMEOUT", 30*time.Second),

		AuditRetention:     getEnvAsDuration("AUDIT_RETENTION", 90*24*time.Hour),
		AuditPurgeInterval: getEnvAsDuration("AUDIT_PURGE_INTERVAL", 24*time.Hour),
	}
}

// LoadDotEnv loads the given dotenv files into the process environment.
// Files that do not exist are skipped; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// EmailProviderName resolves the configured provider, expanding "auto".
func (c *Config) EmailProviderName() string {
	switch c.EmailProvider {
	case EmailProviderSMTP, EmailProviderSendGrid, EmailProviderSES, EmailProviderStub:
		return c.EmailProvider
	}
	switch {
	case c.SendGridAPIKey != "":
		return EmailProviderSendGrid
	case c.SMTPHost != "":
		return EmailProviderSMTP
	case c.AWSAccessKeyID != "":
		return EmailProviderSES
	default:
		return EmailProviderStub
	}
}

// MissingRequired lists the required environment keys that are empty.
func (c *Config) MissingRequired() []string {
	var missing []string
	check := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	check("DATABASE_URL", c.DatabaseURL)
	check("ADMIN_EMAIL", c.AdminEmail)

	switch c.EmailProviderName() {
	case EmailProviderSMTP:
		check("SMTP_HOST", c.SMTPHost)
		check("SMTP_USER", c.SMTPUser)
		check("SMTP_PASSWORD", c.SMTPPassword)
	case EmailProviderSendGrid:
		check("SENDGRID_API_KEY", c.SendGridAPIKey)
	case EmailProviderSES:
		check("AWS_REGION", c.AWSRegion)
	case EmailProviderStub:
		missing = append(missing, "EMAIL_PROVIDER")
	}
	return missing
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
