// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, admin authentication, idempotency, and rate
// limiting.
//
// Two surfaces are mounted:
//   - POST /telegram/webhook, guarded by the webhook secret header
//   - the admin API under cfg.APIBasePath, guarded by an admin bearer token
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/config"
	"github.com/tbourn/go-filebot-backend/internal/http/handlers"
	"github.com/tbourn/go-filebot-backend/internal/http/middleware"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/services"
)

// webhookScope namespaces claimed Telegram update ids in the idempotency
// table; webhookOwner stands in for the user column.
const (
	webhookOwner = "telegram"
	webhookScope = "webhook"
)

// Services are the application services the routes call into. Updates is
// nil when no bot token is configured.
type Services struct {
	Broadcasts *services.BroadcastService
	Directory  *services.DirectoryService
	Stats      *services.StatsService
	Guards     *services.Guards
	Updates    handlers.UpdateDispatcher
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + ContextLogger: correlation id and request-scoped logger
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// The admin group adds, in order: AdminAuth, Idempotency (before the rate
// limiter so replays bypass it), the rate limiter, and no-store caching.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())
	r.Use(middleware.ContextLogger())

	// 3) Structured access log with redaction
	r.Use(middleware.AccessLog(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Broadcasts:  svc.Broadcasts,
		Directory:   svc.Directory,
		Dashboard:   svc.Stats,
		Updates:     svc.Updates,
		ClaimUpdate: claimUpdate(db, cfg.IdempotencyTTL),
		Remember:    rememberer(db, cfg.IdempotencyTTL),
	})

	// Telegram
	r.POST("/telegram/webhook", middleware.WebhookSecret(cfg.Telegram.WebhookSecret), h.TelegramWebhook)

	// Admin API
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAdminOrIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.AdminAuth(cfg.AdminJWTSecret, adminGuard(svc.Guards)),
		middleware.Idempotency(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		rl.Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		// Broadcasts
		api.GET("/broadcasts", h.ListBroadcasts)
		api.POST("/broadcasts", h.CreateBroadcast)
		api.GET("/broadcasts/stats", h.BroadcastStats)
		api.GET("/broadcasts/:id", h.GetBroadcast)
		api.GET("/broadcasts/:id/recipients", h.ListRecipients)
		api.POST("/broadcasts/:id/retry", h.RetryBroadcast)

		// Subscription channels
		api.GET("/channels", h.ListChannels)
		api.POST("/channels", h.CreateChannel)
		api.PUT("/channels/:id", h.UpdateChannel)
		api.DELETE("/channels/:id", h.DeleteChannel)

		// Locations
		api.GET("/locations", h.ListLocations)
		api.POST("/locations", h.CreateLocation)

		// Dashboard
		api.GET("/dashboard/stats", h.DashboardStats)
		api.GET("/dashboard/charts", h.DashboardCharts)
		api.POST("/dashboard/invalidate", h.InvalidateDashboard)
		api.GET("/dashboard/users", h.DashboardUsers)
	}
}

// adminGuard admits known, unblocked admins.
func adminGuard(g *services.Guards) middleware.AdminGuard {
	return func(ctx context.Context, telegramID int64) (services.Outcome, error) {
		if g == nil {
			return services.Outcome{Reason: services.ReasonUnknownUser}, nil
		}
		o, err := g.RequireKnownUser(ctx, telegramID)
		if err != nil || !o.Authorized {
			return o, err
		}
		return services.RequireAdmin(o), nil
	}
}

// claimUpdate records update ids so Telegram redeliveries are dropped.
func claimUpdate(db *gorm.DB, ttl time.Duration) handlers.UpdateClaimer {
	return func(ctx context.Context, updateID int64) (bool, error) {
		key := strconv.FormatInt(updateID, 10)
		_, err := repo.CreateIdempotency(ctx, db, webhookOwner, webhookScope, key, "", http.StatusOK, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return rec.ResourceID, true, nil
	}
}

func rememberer(db *gorm.DB, ttl time.Duration) handlers.Rememberer {
	return func(ctx context.Context, userID, scope, key, resourceID string, status int) error {
		_, err := repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}
}

// corsMiddleware allows every origin when none are configured; otherwise it
// echoes allowlisted origins.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		inner := cors.New(base)
		return func(ctx *gin.Context) {
			// Set ACAO even without an Origin header so plain clients see it.
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			inner(ctx)
		}
	}
	base.AllowOrigins = c.AllowedOrigins
	return cors.New(base)
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
