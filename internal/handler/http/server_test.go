package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkpage-backend/internal/auth"
	"linkpage-backend/internal/config"
	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/handler/http/middleware"
	"linkpage-backend/internal/repository"
	"linkpage-backend/internal/repository/memory"
	"linkpage-backend/internal/service"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

type brokenStorage struct {
	repository.Storage
}

func (brokenStorage) Diagnostics(context.Context) (*repository.Diagnostics, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenStorage) Ping(context.Context) error {
	return errors.New("dial tcp: connection refused")
}

const password = "letmein"

func newTestServer(t *testing.T, storage repository.Storage, notifier *fakeNotifier, limiter middleware.Limiter) http.Handler {
	t.Helper()
	log := zap.NewNop()
	return NewServer(Options{
		Storage:     storage,
		Tracker:     service.NewTrackerService(storage, notifier, nil, log),
		Analytics:   service.NewAnalyticsService(storage, &config.Analytics{RecentEventsLimit: 50, JourneysLimit: 100}, log),
		Passwords:   auth.NewPasswordChecker(password, ""),
		Limiter:     limiter,
		LimitWindow: time.Minute,
		Version:     "test",
	}, log).SetupRoutes()
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrackEndpoint(t *testing.T) {
	storage := memory.New()
	notifier := &fakeNotifier{}
	h := newTestServer(t, storage, notifier, nil)

	t.Run("preflight", func(t *testing.T) {
		rec := do(h, http.MethodOptions, "/api/track", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/track", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/api/track", `{"type":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/api/track", `{"type":"purchase","data":{}}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid tracking type"}`, rec.Body.String())
	})

	t.Run("accepted", func(t *testing.T) {
		body := `{"type":"link_click","data":{"visitorId":"v1","linkName":"Telegram","linkUrl":"https://t.me/x","ageVerified":true,"location":{"city":"Berlin","country":"Germany"}}}`
		rec := do(h, http.MethodPost, "/api/track", body, map[string]string{
			"User-Agent":      "Mozilla/5.0 (iPhone) Instagram 300.0",
			"X-Forwarded-For": "8.8.8.8",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())

		events, err := storage.RecentEvents(context.Background(), domain.Filter{}, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		e := events[0]
		assert.Equal(t, domain.EventLinkClick, e.EventType)
		assert.Equal(t, "8.8.8.8", *e.IP)
		assert.Equal(t, "Instagram", *e.SourcePlatform)
		assert.True(t, *e.AgeVerified)

		require.NotEmpty(t, notifier.messages)
		assert.Contains(t, notifier.messages[len(notifier.messages)-1], "Link Clicked!")
	})
}

func TestTrackEndpoint_NotifierFailure(t *testing.T) {
	storage := memory.New()
	h := newTestServer(t, storage, &fakeNotifier{err: errors.New("telegram down")}, nil)

	rec := do(h, http.MethodPost, "/api/track", `{"type":"page_view","data":{}}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to track event", resp.Error)
	assert.NotContains(t, resp.Message, "telegram down")

	d, err := storage.Diagnostics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.TotalRecords)
}

func TestTrackEndpoint_RateLimited(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(1, time.Minute)
	defer limiter.Stop()
	h := newTestServer(t, memory.New(), &fakeNotifier{}, limiter)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/track", `{"type":"page_view"}`, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/track", `{"type":"page_view"}`, nil).Code)
}

func TestAnalyticsEndpoint(t *testing.T) {
	storage := memory.New()
	h := newTestServer(t, storage, &fakeNotifier{}, nil)

	t.Run("unauthorized", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/analytics", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

		rec = do(h, http.MethodGet, "/api/analytics?password=wrong", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty store", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/analytics?range=bogus", "", map[string]string{auth.PasswordHeader: password})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"summary": {
				"totalVisitors": 0, "newVisitors": 0, "returningVisitors": 0,
				"totalClicks": 0, "visitorsWhoClicked": 0, "bounces": 0,
				"avgTimeToClick": 0, "conversionRate": 0, "bounceRate": 0,
				"topLocations": [], "linkClicks": [], "devices": [], "browsers": []
			},
			"recentEvents": [],
			"userJourneys": [],
			"timeRange": "24h"
		}`, rec.Body.String())
	})

	t.Run("berlin visitor", func(t *testing.T) {
		body := `{"type":"page_view","data":{"visitorId":"v_1","isNewVisitor":true,"visitCount":1,"location":{"city":"Berlin","country":"Germany"}}}`
		require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/track", body, nil).Code)

		rec := do(h, http.MethodGet, "/api/analytics?range=24h&password="+password, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var d service.Dashboard
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
		assert.Equal(t, int64(1), d.Summary.TotalVisitors)
		assert.Equal(t, int64(1), d.Summary.NewVisitors)
		assert.Equal(t, int64(0), d.Summary.ReturningVisitors)
		assert.Contains(t, d.Summary.TopLocations, domain.LocationStat{City: "Berlin", Country: "Germany", Visits: 1})
		require.Len(t, d.UserJourneys, 1)
		assert.Equal(t, "v_1", d.UserJourneys[0].VisitorID)
	})

	t.Run("source filter", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/analytics?source=Instagram", "", map[string]string{auth.PasswordHeader: password})
		require.Equal(t, http.StatusOK, rec.Code)

		var d service.Dashboard
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
		assert.Equal(t, int64(0), d.Summary.TotalVisitors)
	})
}

func TestDBCheckEndpoint(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newTestServer(t, memory.New(), &fakeNotifier{}, nil)
		rec := do(h, http.MethodGet, "/api/db-check", "", map[string]string{auth.PasswordHeader: password})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DiagnosticsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Connected)
		assert.Equal(t, "memory", resp.Database.Backend)
		assert.Contains(t, resp.Environment, "POSTGRES_URL")
	})

	t.Run("unauthorized", func(t *testing.T) {
		h := newTestServer(t, memory.New(), &fakeNotifier{}, nil)
		assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/db-check", "", nil).Code)
	})

	t.Run("store down", func(t *testing.T) {
		h := newTestServer(t, brokenStorage{}, &fakeNotifier{}, nil)
		rec := do(h, http.MethodGet, "/api/db-check", "", map[string]string{auth.PasswordHeader: password})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, memory.New(), &fakeNotifier{}, nil)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ready", "", nil).Code)

	rec := do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	down := newTestServer(t, brokenStorage{}, &fakeNotifier{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/health", "", nil).Code)
}
