package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"linkpage-backend/internal/config"
	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/metrics"
	"linkpage-backend/internal/repository"
)

// Dashboard is the body of GET /api/analytics.
type Dashboard struct {
	Summary      domain.Summary          `json:"summary"`
	RecentEvents []domain.Event          `json:"recentEvents"`
	UserJourneys []domain.VisitorJourney `json:"userJourneys"`
	TimeRange    domain.TimeRange        `json:"timeRange"`
}

// AnalyticsService assembles dashboard data from the event store.
type AnalyticsService struct {
	storage       repository.Storage
	recentLimit   int
	journeysLimit int
	log           *zap.Logger
	now           func() time.Time
}

func NewAnalyticsService(storage repository.Storage, cfg *config.Analytics, log *zap.Logger) *AnalyticsService {
	recent, journeys := cfg.RecentEventsLimit, cfg.JourneysLimit
	if recent <= 0 {
		recent = 50
	}
	if journeys <= 0 {
		journeys = 100
	}
	return &AnalyticsService{
		storage:       storage,
		recentLimit:   recent,
		journeysLimit: journeys,
		log:           log,
		now:           time.Now,
	}
}

// Dashboard never fails: each section falls back to its empty form when
// the store errors, so the page always renders.
func (s *AnalyticsService) Dashboard(ctx context.Context, r domain.TimeRange, source string) *Dashboard {
	filter := domain.NewFilter(r, source, s.now())
	d := &Dashboard{
		Summary:      domain.EmptySummary(),
		RecentEvents: []domain.Event{},
		UserJourneys: []domain.VisitorJourney{},
		TimeRange:    r,
	}

	counts, err := s.storage.Counts(ctx, filter)
	if err != nil {
		s.fallback("counts", err)
	} else {
		d.Summary = domain.NewSummary(*counts)
	}

	recent, err := s.storage.RecentEvents(ctx, filter, s.recentLimit)
	if err != nil {
		s.fallback("recent_events", err)
	} else if recent != nil {
		d.RecentEvents = recent
	}

	visitorEvents, err := s.storage.VisitorEvents(ctx, filter)
	if err != nil {
		s.fallback("visitor_events", err)
	} else {
		d.UserJourneys = domain.BuildJourneys(visitorEvents, s.journeysLimit)
	}

	return d
}

func (s *AnalyticsService) fallback(operation string, err error) {
	metrics.DashboardFallbacks.Inc()
	if errors.Is(err, repository.ErrTableMissing) {
		s.log.Warn("analytics table missing, returning empty dashboard", zap.String("operation", operation))
		return
	}
	metrics.StoreErrors.WithLabelValues(operation).Inc()
	s.log.Error("failed to load dashboard data", zap.String("operation", operation), zap.Error(err))
}
