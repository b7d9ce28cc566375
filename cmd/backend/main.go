// Package main provides the entry point for the link page analytics service.
//
//	@title			Link Page Analytics API
//	@version		1.0.0
//	@description	Visitor tracking and analytics dashboard for a link-in-bio landing page.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	AnalyticsPassword
//	@in							header
//	@name						x-analytics-password
package main

import (
	"context"
	"errors"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"linkpage-backend/internal/auth"
	"linkpage-backend/internal/config"
	"linkpage-backend/internal/database"
	httpHandler "linkpage-backend/internal/handler/http"
	"linkpage-backend/internal/handler/http/middleware"
	"linkpage-backend/internal/notify"
	"linkpage-backend/internal/repository"
	"linkpage-backend/internal/repository/memory"
	"linkpage-backend/internal/repository/postgres"
	"linkpage-backend/internal/service"
	"linkpage-backend/pkg/logger"
	"linkpage-backend/pkg/useragent"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting link page analytics service", zap.String("env", cfg.Env), zap.String("version", version))

	storage, closeStorage := openStorage(cfg, log)
	defer closeStorage()

	uaParser, err := useragent.NewParser(cfg.UserAgent.RegexesPath, log)
	if err != nil {
		log.Fatal("failed to initialize User-Agent parser", zap.Error(err))
	}

	notifier := notify.New(cfg.Telegram, log)
	trackerService := service.NewTrackerService(storage, notifier, uaParser, log)
	analyticsService := service.NewAnalyticsService(storage, &cfg.Analytics, log)

	limiter, stopLimiter := newLimiter(cfg.RateLimit, log)
	defer stopLimiter()

	proxies, err := middleware.NewTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		log.Fatal("invalid rate_limit.trusted_proxies", zap.Error(err))
	}

	apiServer := httpHandler.NewServer(httpHandler.Options{
		Storage:     storage,
		Tracker:     trackerService,
		Analytics:   analyticsService,
		Passwords:   auth.NewPasswordChecker(cfg.Analytics.Password, cfg.Analytics.PasswordHash),
		Limiter:     limiter,
		LimitWindow: cfg.RateLimit.Window,
		Proxies:     proxies,
		Version:     version,
	}, log)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	log.Info("starting HTTP server", zap.String("address", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down link page analytics service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}

// openStorage connects to PostgreSQL when a connection string is configured
// and falls back to the in-memory store otherwise.
func openStorage(cfg *config.Config, log *zap.Logger) (repository.Storage, func()) {
	dsn := cfg.Database.DSN()
	if dsn == "" {
		log.Warn("no database connection string configured, events are kept in memory only",
			zap.Strings("checked_env", config.ConnectionStringEnv))
		return memory.New(), func() {}
	}

	db, err := database.NewConnection(dsn, &cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	return postgres.New(db, log), func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}
}

// newLimiter returns nil when limiting is disabled.
func newLimiter(cfg config.RateLimit, log *zap.Logger) (middleware.Limiter, func()) {
	if cfg.Requests <= 0 {
		log.Info("rate limiting disabled")
		return nil, func() {}
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rl, err := middleware.NewRedisLimiter(ctx, cfg.RedisURL, cfg.Requests, cfg.Window, log)
		if err == nil {
			log.Info("using redis rate limiter", zap.Int("requests", cfg.Requests), zap.Duration("window", cfg.Window))
			return rl, func() {
				if err := rl.Close(); err != nil {
					log.Error("failed to close redis client", zap.Error(err))
				}
			}
		}
		log.Warn("redis unavailable, falling back to in-memory rate limiter", zap.Error(err))
	}

	ml := middleware.NewMemoryLimiter(cfg.Requests, cfg.Window)
	ml.StartCleanup(cfg.Window)
	log.Info("using in-memory rate limiter", zap.Int("requests", cfg.Requests), zap.Duration("window", cfg.Window))
	return ml, ml.Stop
}
