package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consent-backend/internal/consent"
	"consent-backend/internal/services/health"
	"consent-backend/internal/shared/config"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/server/respond"
	"consent-backend/internal/uploads"
)

const publicRateGroup = "PUBLIC"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	Verifier       middleware.TokenVerifier
	ConsentHandler *consent.Handler
	PublicHandler  *consent.PublicHandler
	UploadsHandler *uploads.Handler
	RateLimiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(corsOrigins(deps.Config)),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})

	public := api.Group("")
	public.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			publicRateGroup: {Rate: deps.Config.PublicRateRPS, Burst: deps.Config.PublicRateBurst},
		},
		DefaultGroup: publicRateGroup,
		Limiter:      deps.RateLimiter,
	}))
	if deps.PublicHandler != nil {
		deps.PublicHandler.RegisterRoutes(public)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminAuth(deps.Verifier, deps.Config.AdminRoles))
	registerMeRoutes(admin)
	if deps.ConsentHandler != nil {
		deps.ConsentHandler.RegisterRoutes(admin)
	}
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(admin)
	}

	return r
}

// corsOrigins allows the configured admin origins plus the consent portal's origin.
func corsOrigins(cfg config.Config) []string {
	origins := append([]string(nil), cfg.CORSAllowOrigin...)
	if portal := middleware.OriginOf(cfg.PublicBaseURL); portal != "" {
		origins = append(origins, portal)
	}
	return origins
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
