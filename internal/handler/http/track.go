package http

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"linkpage-backend/internal/handler/http/middleware"
	"linkpage-backend/internal/service"
)

const maxTrackBodyBytes = 64 << 10

// TrackHandler обработчик приема событий
type TrackHandler struct {
	tracker *service.TrackerService
	log     *zap.Logger
}

// NewTrackHandler создает новый обработчик приема событий
func NewTrackHandler(tracker *service.TrackerService, log *zap.Logger) *TrackHandler {
	return &TrackHandler{
		tracker: tracker,
		log:     log,
	}
}

// TrackResponse ответ при успешном приеме
type TrackResponse struct {
	Success bool `json:"success"`
}

// Track принимает одно событие посетителя
//
//	@Summary		Track a visitor event
//	@Description	Store one landing page event and forward it to Telegram
//	@Tags			Tracking
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.TrackRequest	true	"Event"
//	@Success		200		{object}	TrackResponse			"Event accepted"
//	@Failure		400		{object}	ErrorResponse			"Invalid tracking type or body"
//	@Failure		405		{object}	ErrorResponse			"Method not allowed"
//	@Failure		429		{object}	ErrorResponse			"Rate limit exceeded"
//	@Failure		500		{object}	ErrorResponse			"Notification delivery failed"
//	@Router			/api/track [post]
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.TrackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackBodyBytes)).Decode(&req); err != nil {
		h.log.Debug("invalid track request", zap.Error(err))
		writeError(w, h.log, "Invalid request body", http.StatusBadRequest)
		return
	}

	meta := service.RequestMeta{
		ClientIP:  middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}

	_, err := h.tracker.Track(r.Context(), &req, meta)
	switch {
	case errors.Is(err, service.ErrInvalidEvent):
		writeError(w, h.log, "Invalid tracking type", http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrNotificationFailed):
		h.log.Error("tracking error",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		writeJSON(w, h.log, ErrorResponse{
			Error:   "Failed to track event",
			Message: "notification delivery failed",
		}, http.StatusInternalServerError)
		return
	case err != nil:
		h.log.Error("tracking error", zap.Error(err))
		writeError(w, h.log, "Failed to track event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, TrackResponse{Success: true}, http.StatusOK)
}
