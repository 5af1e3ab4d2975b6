package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"consent-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	CORSAllowOrigin []string
	DB              DBPool

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	UploadsBucket   string
	UploadsPrefix   string

	PublicBaseURL        string
	MailProvider         string
	MailFrom             string
	NotifyQueueURL       string
	NotifyConcurrency    int
	AllowResendCompleted bool
	JWTSecret            string
	AdminRoles           []string
	PublicRateRPS        float64
	PublicRateBurst      int

	Worker Worker
}

// Worker configures the long-running queue consumer in cmd/worker.
type Worker struct {
	Concurrency     int
	Visibility      time.Duration
	ShutdownTimeout time.Duration
}

// DBPool carries optional DB_* pool overrides; zero means use the process default.
type DBPool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// Load reads configuration from environment variables, falling back to .env files
// for local development.
func Load() Config {
	v := newViper(".env", "cmd/.env")

	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:                 v.GetString("PORT"),
		Env:                  env,
		DatabaseURL:          dbURL,
		CORSAllowOrigin:      splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DB: DBPool{
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			PingTimeout:     v.GetDuration("DB_PING_TIMEOUT"),
		},
		ObjectStoreType:      normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:        v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:            v.GetString("AWS_REGION"),
		S3Bucket:             v.GetString("S3_BUCKET"),
		S3Prefix:             v.GetString("S3_PREFIX"),
		SSEKMSKeyID:          v.GetString("SSE_KMS_KEY_ID"),
		UploadsBucket:        v.GetString("UPLOADS_S3_BUCKET"),
		UploadsPrefix:        v.GetString("UPLOADS_S3_PREFIX"),
		PublicBaseURL:        strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		MailProvider:         normalizeMailProvider(v.GetString("MAIL_PROVIDER")),
		MailFrom:             v.GetString("MAIL_FROM"),
		NotifyQueueURL:       strings.TrimSpace(v.GetString("NOTIFY_SQS_QUEUE_URL")),
		NotifyConcurrency:    v.GetInt("NOTIFY_CONCURRENCY"),
		AllowResendCompleted: v.GetBool("CONSENT_RESEND_COMPLETED"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		AdminRoles:           splitAndTrim(v.GetString("ADMIN_ROLES")),
		PublicRateRPS:        v.GetFloat64("PUBLIC_RATE_RPS"),
		PublicRateBurst:      v.GetInt("PUBLIC_RATE_BURST"),
		Worker: Worker{
			Concurrency:     v.GetInt("WORKER_CONCURRENCY"),
			Visibility:      time.Duration(v.GetInt("WORKER_VISIBILITY_TIMEOUT_SECONDS")) * time.Second,
			ShutdownTimeout: time.Duration(v.GetInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
	}
}

func newViper(envFiles ...string) *viper.Viper {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("UPLOADS_S3_PREFIX", "consent-documents/")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:5173")
	v.SetDefault("MAIL_PROVIDER", "log")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("NOTIFY_CONCURRENCY", 8)
	v.SetDefault("CONSENT_RESEND_COMPLETED", true)
	v.SetDefault("ADMIN_ROLES", "admin,staff")
	v.SetDefault("PUBLIC_RATE_RPS", 2)
	v.SetDefault("PUBLIC_RATE_BURST", 10)
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("WORKER_VISIBILITY_TIMEOUT_SECONDS", 120)
	v.SetDefault("WORKER_SHUTDOWN_TIMEOUT_SECONDS", 30)

	// Best-effort load of local env files; real environment variables win.
	v.SetConfigType("env")
	for _, path := range envFiles {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}
	v.AutomaticEnv()
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeMailProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ses":
		return "ses"
	default:
		return "log"
	}
}
