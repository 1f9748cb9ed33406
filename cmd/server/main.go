// Command server runs the file bot backend: the Telegram webhook, the admin
// API and the broadcast delivery workers in one process.
//
// @title                      File Bot Admin API
// @version                    1.0
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-filebot-backend/docs"
	"github.com/tbourn/go-filebot-backend/internal/app"
	"github.com/tbourn/go-filebot-backend/internal/config"
	httpapi "github.com/tbourn/go-filebot-backend/internal/http"
	"github.com/tbourn/go-filebot-backend/internal/observability"
	"github.com/tbourn/go-filebot-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger("error", false, os.Stderr)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")
	log.Info().Str("version", ver).Str("port", cfg.Port).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	ac, err := app.New(ctx, cfg, !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATE")))
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	workCtx, cancelWork := context.WithCancel(context.Background())
	ac.Start(workCtx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	httpapi.RegisterRoutes(r, ac.DB, services(ac), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("bot", cfg.BotEnabled()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancelWork()
	ac.Wait()
	if err := ac.Close(); err != nil {
		log.Error().Err(err).Msg("close resources")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
}

// services exposes the assembled services to the router. Updates stays a
// nil interface when the bot is disabled.
func services(ac *app.Context) httpapi.Services {
	svc := httpapi.Services{
		Broadcasts: ac.Broadcasts,
		Directory:  ac.Directory,
		Stats:      ac.Stats,
		Guards:     ac.Guards,
	}
	if ac.Dispatcher != nil {
		svc.Updates = ac.Dispatcher
	}
	return svc
}
