package http

import (
	"net/http"

	"go.uber.org/zap"

	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/service"
)

// AnalyticsHandler обработчик дашборда
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	log       *zap.Logger
}

// NewAnalyticsHandler создает новый обработчик дашборда
func NewAnalyticsHandler(analytics *service.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		log:       log,
	}
}

// Dashboard возвращает сводку, последние события и пути посетителей
//
//	@Summary		Visitor analytics
//	@Description	Summary, recent events and visitor journeys for a time window
//	@Tags			Analytics
//	@Produce		json
//	@Security		AnalyticsPassword
//	@Param			range		query		string	false	"24h, 7d or 30d"	default(24h)
//	@Param			source		query		string	false	"Source platform or all"
//	@Success		200			{object}	service.Dashboard
//	@Failure		401			{object}	ErrorResponse	"Unauthorized"
//	@Failure		405			{object}	ErrorResponse	"Method not allowed"
//	@Router			/api/analytics [get]
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	timeRange := domain.ParseTimeRange(q.Get("range"))
	dashboard := h.analytics.Dashboard(r.Context(), timeRange, q.Get("source"))

	h.log.Debug("served dashboard",
		zap.String("range", string(timeRange)),
		zap.String("source", q.Get("source")),
		zap.Int64("total_visitors", dashboard.Summary.TotalVisitors),
	)
	writeJSON(w, h.log, dashboard, http.StatusOK)
}
