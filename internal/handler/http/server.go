package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"linkpage-backend/internal/auth"
	"linkpage-backend/internal/handler/http/middleware"
	"linkpage-backend/internal/repository"
	"linkpage-backend/internal/service"
)

// Server HTTP сервер с обработчиками
type Server struct {
	trackHandler       *TrackHandler
	analyticsHandler   *AnalyticsHandler
	diagnosticsHandler *DiagnosticsHandler
	healthHandler      *HealthHandler
	authMiddleware     *auth.Middleware
	limiter            middleware.Limiter
	limitWindow        time.Duration
	proxies            *middleware.TrustedProxies
	log                *zap.Logger
}

// Options зависимости сервера
type Options struct {
	Storage   repository.Storage
	Tracker   *service.TrackerService
	Analytics *service.AnalyticsService
	Passwords *auth.PasswordChecker
	// Limiter может быть nil: ограничение частоты отключено
	Limiter     middleware.Limiter
	LimitWindow time.Duration
	// Proxies nil: заголовки X-Forwarded-For не учитываются при ограничении
	Proxies     *middleware.TrustedProxies
	Version     string
}

// NewServer создает новый HTTP сервер
func NewServer(opts Options, log *zap.Logger) *Server {
	return &Server{
		trackHandler:       NewTrackHandler(opts.Tracker, log),
		analyticsHandler:   NewAnalyticsHandler(opts.Analytics, log),
		diagnosticsHandler: NewDiagnosticsHandler(opts.Storage, log),
		healthHandler:      NewHealthHandler(opts.Storage, opts.Version, log),
		authMiddleware:     auth.NewMiddleware(opts.Passwords, log),
		limiter:            opts.Limiter,
		limitWindow:        opts.LimitWindow,
		proxies:            opts.Proxies,
		log:                log,
	}
}

// SetupRoutes настраивает маршруты
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (без аутентификации)
	s.handle(mux, "/health", s.healthHandler.Health)
	s.handle(mux, "/ready", s.healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// Прием событий (публичный, с ограничением частоты)
	var track http.Handler = http.HandlerFunc(s.trackHandler.Track)
	if s.limiter != nil {
		track = middleware.RateLimit(s.limiter, s.limitWindow, s.proxies)(track)
	}
	s.handle(mux, "/api/track", auth.CORS("POST, OPTIONS", track.ServeHTTP))

	// Дашборд (с паролем)
	s.handle(mux, "/api/analytics", auth.CORS("GET, OPTIONS", s.authMiddleware.RequirePassword(s.analyticsHandler.Dashboard)))
	s.handle(mux, "/api/db-check", auth.CORS("GET, OPTIONS", s.authMiddleware.RequirePassword(s.diagnosticsHandler.DBCheck)))

	return middleware.Chain(mux, middleware.RequestID, middleware.Logging(s.log))
}

func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.Handle(route, middleware.Instrument(route, h))
}
