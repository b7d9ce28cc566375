package http

import (
	"context"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"linkpage-backend/internal/config"
	"linkpage-backend/internal/repository"
)

// DiagnosticsHandler обработчик проверки базы данных
type DiagnosticsHandler struct {
	storage repository.Storage
	log     *zap.Logger
	getenv  func(string) string
}

// NewDiagnosticsHandler создает новый обработчик проверки базы
func NewDiagnosticsHandler(storage repository.Storage, log *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		storage: storage,
		log:     log,
		getenv:  os.Getenv,
	}
}

// DiagnosticsResponse результат db-check. Значения переменных окружения
// не раскрываются, только факт их наличия.
type DiagnosticsResponse struct {
	Success     bool                    `json:"success"`
	Environment map[string]bool         `json:"environment"`
	Connected   bool                    `json:"connected"`
	Database    *repository.Diagnostics `json:"database,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// DBCheck отчет о подключении и состоянии таблицы
//
//	@Summary		Database diagnostics
//	@Tags			Analytics
//	@Produce		json
//	@Security		AnalyticsPassword
//	@Success		200	{object}	DiagnosticsResponse
//	@Failure		401	{object}	ErrorResponse	"Unauthorized"
//	@Failure		500	{object}	DiagnosticsResponse
//	@Router			/api/db-check [get]
func (h *DiagnosticsHandler) DBCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := DiagnosticsResponse{Environment: make(map[string]bool)}
	resp.Environment["DATABASE_DSN"] = h.getenv("DATABASE_DSN") != ""
	for _, key := range config.ConnectionStringEnv {
		resp.Environment[key] = h.getenv(key) != ""
	}
	resp.Environment["TELEGRAM_BOT_TOKEN"] = h.getenv("TELEGRAM_BOT_TOKEN") != ""
	resp.Environment["TELEGRAM_CHAT_ID"] = h.getenv("TELEGRAM_CHAT_ID") != ""

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	diag, err := h.storage.Diagnostics(ctx)
	if err != nil {
		h.log.Error("database check failed", zap.Error(err))
		resp.Error = "database connection failed"
		writeJSON(w, h.log, resp, http.StatusInternalServerError)
		return
	}

	resp.Success = true
	resp.Connected = true
	resp.Database = diag
	writeJSON(w, h.log, resp, http.StatusOK)
}
