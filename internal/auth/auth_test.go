package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordChecker(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		c := NewPasswordChecker("secret", "")
		assert.NoError(t, c.Verify("secret"))
		assert.ErrorIs(t, c.Verify("Secret"), ErrInvalidPassword)
		assert.ErrorIs(t, c.Verify(""), ErrInvalidPassword)
	})

	t.Run("hash wins over plain", func(t *testing.T) {
		hash, err := HashPassword("hashed", bcrypt.MinCost)
		require.NoError(t, err)

		c := NewPasswordChecker("secret", hash)
		assert.NoError(t, c.Verify("hashed"))
		assert.ErrorIs(t, c.Verify("secret"), ErrInvalidPassword)
	})

	t.Run("unconfigured rejects everything", func(t *testing.T) {
		c := NewPasswordChecker("", "")
		assert.ErrorIs(t, c.Verify(""), ErrNoPassword)
		assert.ErrorIs(t, c.Verify("anything"), ErrNoPassword)
	})

	t.Run("empty password cannot be hashed", func(t *testing.T) {
		_, err := HashPassword("", bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestMiddleware_RequirePassword(t *testing.T) {
	m := NewMiddleware(NewPasswordChecker("secret", ""), zap.NewNop())
	called := false
	h := m.RequirePassword(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"header", "/api/analytics", "secret", http.StatusOK},
		{"query", "/api/analytics?password=secret", "", http.StatusOK},
		{"wrong", "/api/analytics?password=nope", "", http.StatusUnauthorized},
		{"missing", "/api/analytics", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(PasswordHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusOK, called)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS("POST, OPTIONS", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodOptions, "/api/track", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/track", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
