package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"consent-backend/internal/audit"
	"consent-backend/internal/consent"
	"consent-backend/internal/notify"
	"consent-backend/internal/queue"
	"consent-backend/internal/recipients"
	"consent-backend/internal/services/health"
	"consent-backend/internal/shared/auth"
	"consent-backend/internal/shared/config"
	"consent-backend/internal/shared/server"
	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/storage/db"
	"consent-backend/internal/shared/storage/object"
	localstore "consent-backend/internal/shared/storage/object/local"
	s3store "consent-backend/internal/shared/storage/object/s3"
	"consent-backend/internal/shared/telemetry"
	"consent-backend/internal/uploads"
	"consent-backend/internal/workerproc"
)

const presignTTL = 15 * time.Minute

// App holds shared dependencies and the wired router.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Client
	Presigner  *s3store.Presigner
	Repo       consent.Repo
	Recipients recipients.Resolver
	Events     *consent.Bus
	Service    *consent.Service
	Dispatcher *notify.Dispatcher
	Notifier   *notify.Subscriber
	Audit      *audit.Subscriber
	Processor  *workerproc.Processor
	Signer     *auth.Signer

	ConsentHandler *consent.Handler
	PublicHandler  *consent.PublicHandler
	UploadsHandler *uploads.Handler
}

// Build prepares shared dependencies and wires routes. Without a database the
// app runs on in-memory stores, which is only accepted in dev-like environments.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	presigner, err := buildPresigner(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sender, err := buildSender(ctx, cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Queue:     queueClient,
		Presigner: presigner,
		Signer:    signer,
	}
	buildServices(app, sender)

	deps := server.RouterDeps{
		Config:         cfg,
		Health:         health.NewService(nil),
		Verifier:       signer,
		ConsentHandler: app.ConsentHandler,
		PublicHandler:  app.PublicHandler,
		UploadsHandler: app.UploadsHandler,
		RateLimiter:    middleware.NewRateLimiter(nil),
	}
	if sqlDB != nil {
		deps.Health = health.NewService(sqlDB)
	}
	app.Router = server.NewRouter(deps)

	return app, nil
}

// Close waits for in-flight notifications and releases the database.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		db.LogStats(a.DB, "shutdown")
		_ = a.DB.Close()
	}
}

func buildServices(app *App, sender notify.Sender) {
	var (
		repo      consent.Repo
		directory recipients.Resolver
		writer    audit.Writer
	)
	if app.DB != nil {
		repo = &consent.PGRepo{DB: app.DB}
		directory = &recipients.PGDirectory{DB: app.DB}
		writer = &audit.PGWriter{DB: app.DB}
	} else {
		repo = consent.NewMemoryRepo()
		directory = recipients.NewMemoryDirectory()
	}

	dispatcher := notify.NewDispatcher(directory, sender, app.Config.PublicBaseURL, app.Config.NotifyConcurrency)
	notifier := notify.NewSubscriber(dispatcher, app.Queue)
	// Lambda freezes the sandbox once the response is written.
	notifier.Sync = db.IsLambdaRuntime()
	auditor := audit.NewSubscriber(writer)
	bus := consent.NewBus(notifier, auditor)

	svc := consent.NewService(repo, directory, bus)
	svc.AllowResendCompleted = app.Config.AllowResendCompleted

	var presigner uploads.Presigner
	if app.Presigner != nil {
		presigner = app.Presigner
	}

	app.Repo = repo
	app.Recipients = directory
	app.Events = bus
	app.Service = svc
	app.Dispatcher = dispatcher
	app.Notifier = notifier
	app.Audit = auditor
	app.Processor = workerproc.NewProcessor(svc, dispatcher)
	app.ConsentHandler = consent.NewHandler(svc)
	app.PublicHandler = consent.NewPublicHandler(svc, app.Store)
	app.UploadsHandler = uploads.NewHandler(app.Store, presigner)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory_fallback", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.PoolFor(db.RuntimeProfile(), dbOverrides(cfg)))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory_fallback", map[string]any{
				"reason": "connect failed",
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func dbOverrides(cfg config.Config) db.Overrides {
	return db.Overrides{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
		PingTimeout:     cfg.DB.PingTimeout,
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.NotifyQueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
}

func buildPresigner(ctx context.Context, cfg config.Config) (*s3store.Presigner, error) {
	bucket := strings.TrimSpace(cfg.UploadsBucket)
	if bucket == "" {
		return nil, nil
	}
	awsCfg, err := s3store.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return s3store.NewPresigner(s3.NewFromConfig(awsCfg), bucket, cfg.UploadsPrefix, presignTTL), nil
}

func buildSender(ctx context.Context, cfg config.Config) (notify.Sender, error) {
	switch cfg.MailProvider {
	case "ses":
		return notify.NewSESSender(ctx, cfg.AWSRegion, cfg.MailFrom)
	default:
		if !isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.mail.log_only", map[string]any{"mail_provider": cfg.MailProvider})
		}
		return notify.LogSender{}, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
