package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("PORT", "")

	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "local", cfg.ObjectStoreType)
	require.Equal(t, "log", cfg.MailProvider)
	require.True(t, cfg.AllowResendCompleted)
	require.Equal(t, []string{"admin", "staff"}, cfg.AdminRoles)
	require.Equal(t, 8, cfg.NotifyConcurrency)
	require.Equal(t, 4, cfg.Worker.Concurrency)
	require.Equal(t, 2*time.Minute, cfg.Worker.Visibility)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://db/consent")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("MAIL_PROVIDER", "ses")
	t.Setenv("PUBLIC_BASE_URL", "https://portal.example.com/")
	t.Setenv("CONSENT_RESEND_COMPLETED", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")

	cfg := Load()

	require.Equal(t, "production", cfg.Env)
	require.Equal(t, "postgres://db/consent", cfg.DatabaseURL)
	require.Equal(t, "s3", cfg.ObjectStoreType)
	require.Equal(t, "ses", cfg.MailProvider)
	require.Equal(t, "https://portal.example.com", cfg.PublicBaseURL)
	require.False(t, cfg.AllowResendCompleted)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowOrigin)
	require.Equal(t, 7, cfg.DB.MaxOpenConns)
	require.Equal(t, 45*time.Second, cfg.DB.ConnMaxIdleTime)
}
