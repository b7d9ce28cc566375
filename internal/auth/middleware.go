package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// PasswordHeader заголовок с паролем дашборда
const PasswordHeader = "x-analytics-password"

// Middleware проверка общего пароля для HTTP обработчиков
type Middleware struct {
	checker *PasswordChecker
	log     *zap.Logger
}

// NewMiddleware создает новый middleware
func NewMiddleware(checker *PasswordChecker, log *zap.Logger) *Middleware {
	return &Middleware{
		checker: checker,
		log:     log,
	}
}

// RequirePassword пропускает запрос дальше, только если пароль из заголовка
// или параметра password совпадает. Иначе 401 до любого обращения к данным.
func (m *Middleware) RequirePassword(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.Header.Get(PasswordHeader)
		if password == "" {
			password = r.URL.Query().Get("password")
		}

		if err := m.checker.Verify(password); err != nil {
			if errors.Is(err, ErrNoPassword) {
				m.log.Warn("dashboard password not configured, rejecting request", zap.String("path", r.URL.Path))
			} else {
				m.log.Debug("invalid dashboard password", zap.String("path", r.URL.Path))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	}
}

// CORS разрешает запросы с любого origin для перечисленных методов и
// отвечает 200 на preflight OPTIONS
func CORS(methods string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+PasswordHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}
