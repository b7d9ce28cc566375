package http

import (
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, message string, statusCode int) {
	writeJSON(w, log, ErrorResponse{Error: message}, statusCode)
}
