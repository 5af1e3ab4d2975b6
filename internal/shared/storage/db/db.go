package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"consent-backend/internal/shared/telemetry"
)

// ApplicationName is reported to Postgres as application_name.
const ApplicationName = "consent-backend"

// ErrNoDatabaseURL is returned when no connection string is configured.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// Profile selects pool defaults for the kind of process opening the database.
type Profile string

const (
	ProfileServer  Profile = "server"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// Pool controls database/sql pool sizing and the startup ping.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// Overrides are operator-supplied pool settings; zero values keep the profile default.
type Overrides struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var openConnector = func(cfg *pgx.ConnConfig) *sql.DB {
	return stdlib.OpenDB(*cfg)
}

// IsLambdaRuntime reports whether the current process is running in AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// RuntimeProfile picks ProfileLambda inside Lambda and ProfileServer elsewhere.
func RuntimeProfile() Profile {
	if IsLambdaRuntime() {
		return ProfileLambda
	}
	return ProfileServer
}

// PoolFor returns the pool defaults for profile with overrides applied.
// Lambda containers hold few connections since each handles one request at a time.
func PoolFor(profile Profile, o Overrides) Pool {
	var p Pool
	switch profile {
	case ProfileLambda:
		p = Pool{MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: 15 * time.Minute, ConnMaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second}
	case ProfileMigrate:
		p = Pool{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second}
	default:
		p = Pool{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second}
	}
	if o.MaxOpenConns > 0 {
		p.MaxOpenConns = o.MaxOpenConns
	}
	if o.MaxIdleConns > 0 {
		p.MaxIdleConns = o.MaxIdleConns
	}
	if o.ConnMaxLifetime > 0 {
		p.ConnMaxLifetime = o.ConnMaxLifetime
	}
	if o.ConnMaxIdleTime > 0 {
		p.ConnMaxIdleTime = o.ConnMaxIdleTime
	}
	if o.PingTimeout > 0 {
		p.PingTimeout = o.PingTimeout
	}
	if p.MaxIdleConns > p.MaxOpenConns {
		p.MaxIdleConns = p.MaxOpenConns
	}
	return p
}

// Open parses databaseURL with pgx, opens a database/sql handle on the pgx driver
// and pings it. Callers own the returned handle and share it across repositories.
func Open(ctx context.Context, databaseURL string, pool Pool) (*sql.DB, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	connCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	if connCfg.RuntimeParams["application_name"] == "" {
		connCfg.RuntimeParams["application_name"] = ApplicationName
	}

	sqlDB := openConnector(connCfg)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	timeout := pool.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database %s: %w", connCfg.Host, err)
	}

	telemetry.Info("db.opened", map[string]any{
		"host":      connCfg.Host,
		"database":  connCfg.Database,
		"max_open":  pool.MaxOpenConns,
		"max_idle":  pool.MaxIdleConns,
		"lifetime":  pool.ConnMaxLifetime.String(),
		"idle_time": pool.ConnMaxIdleTime.String(),
	})
	return sqlDB, nil
}

// LogStats emits the current pool counters under label.
func LogStats(sqlDB *sql.DB, label string) {
	if sqlDB == nil {
		return
	}
	stats := sqlDB.Stats()
	telemetry.Info("db.pool.stats", map[string]any{
		"label":         label,
		"open":          stats.OpenConnections,
		"in_use":        stats.InUse,
		"idle":          stats.Idle,
		"wait_count":    stats.WaitCount,
		"wait_duration": stats.WaitDuration.String(),
	})
}
