package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkpage-backend/internal/config"
	"linkpage-backend/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func newTestNotifier(url string, bs BreakerSettings) *TelegramNotifier {
	return NewTelegramNotifier(config.Telegram{
		BotToken: "123:abc",
		ChatID:   "42",
		BaseURL:  url,
		Timeout:  time.Second,
	}, bs, zap.NewNop())
}

func TestTelegramNotifier_Notify(t *testing.T) {
	var got SendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, DefaultBreakerSettings())
	require.NoError(t, n.Notify(context.Background(), "<b>hi</b>"))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "<b>hi</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
}

func TestTelegramNotifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL, DefaultBreakerSettings()).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifier_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	assert.Error(t, n.Notify(ctx, "1"))
	assert.Error(t, n.Notify(ctx, "2"))
	assert.ErrorIs(t, n.Notify(ctx, "3"), ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTelegramNotifier_RejectedMessagesKeepBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req SendMessageRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if len([]rune(req.Text)) > MaxMessageLength {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is too long"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()
	long := strings.Repeat("a", 6000)

	for i := 0; i < 5; i++ {
		err := n.Notify(ctx, long)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	}

	assert.NoError(t, n.Notify(ctx, "🔔 <b>New Visitor!</b>"))
	assert.Equal(t, int32(6), calls.Load())
}

func TestTelegramNotifier_RateLimitedCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests"}`))
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, BreakerSettings{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	assert.Error(t, n.Notify(ctx, "1"))
	assert.ErrorIs(t, n.Notify(ctx, "2"), ErrUnavailable)
}

func TestFormatMessage_OversizedFields(t *testing.T) {
	huge := strings.Repeat("x", 6000)
	e := &domain.Event{
		EventType: domain.EventLinkClick,
		LinkName:  strPtr(strings.Repeat("&", 3000)),
		LinkURL:   strPtr("https://example.com/" + huge),
		City:      strPtr(huge),
		Country:   strPtr(huge),
	}

	msg := FormatMessage(e, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	assert.LessOrEqual(t, utf8.RuneCountInString(msg), MaxMessageLength)
	assert.Contains(t, msg, "Link Clicked!")
	assert.Contains(t, msg, "…")
	assert.NotContains(t, msg, huge)
	assert.True(t, utf8.ValidString(msg))
}

func TestCapMessage(t *testing.T) {
	line := strings.Repeat("y", 99) + "\n"
	msg := capMessage(strings.Repeat(line, 50))

	assert.LessOrEqual(t, utf8.RuneCountInString(msg), MaxMessageLength)
	assert.True(t, strings.HasSuffix(msg, "\n…"))
	assert.Equal(t, "short", capMessage("short"))
}

func TestNew_Disabled(t *testing.T) {
	n := New(config.Telegram{}, zap.NewNop())
	_, ok := n.(*Disabled)
	require.True(t, ok)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}

func TestFormatMessage(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("page view", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{
			EventType:      domain.EventPageView,
			City:           strPtr("Berlin"),
			Country:        strPtr("Germany"),
			DeviceType:     strPtr("mobile"),
			SourcePlatform: strPtr("Instagram"),
		}, at)
		assert.Contains(t, msg, "New Visitor!")
		assert.Contains(t, msg, "Berlin, Germany")
		assert.Contains(t, msg, "<b>Device:</b> mobile")
		assert.Contains(t, msg, "<b>Browser:</b> Unknown")
		assert.Contains(t, msg, "Instagram 📸")
		assert.Contains(t, msg, "2026-05-01T10:00:00Z")
		assert.NotContains(t, msg, "Returning")
	})

	t.Run("returning visitor", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{EventType: domain.EventPageView, IsNewVisitor: boolPtr(false), VisitCount: intPtr(4)}, at)
		assert.Contains(t, msg, "visit #4")
		assert.Contains(t, msg, "Unknown, Unknown")
	})

	t.Run("link click", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{
			EventType:   domain.EventLinkClick,
			LinkName:    strPtr("Telegram"),
			LinkURL:     strPtr("https://t.me/x"),
			AgeVerified: boolPtr(false),
		}, at)
		assert.Contains(t, msg, "✈️ <b>Link:</b> Telegram")
		assert.Contains(t, msg, "Age verified:</b> Cancelled")
		assert.Contains(t, msg, "https://t.me/x")
	})

	t.Run("link click without age gate", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{EventType: domain.EventLinkClick, LinkName: strPtr("Shop")}, at)
		assert.NotContains(t, msg, "Age verified")
		assert.Contains(t, msg, "🔗 <b>Link:</b> Shop")
	})

	t.Run("escapes html", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{EventType: domain.EventAgeWarning, City: strPtr("<script>")}, at)
		assert.Contains(t, msg, "&lt;script&gt;")
	})

	t.Run("session end", func(t *testing.T) {
		msg := FormatMessage(&domain.Event{EventType: domain.EventSessionEnd, TimeOnPage: intPtr(42), TimeToInteraction: intPtr(5)}, at)
		assert.Contains(t, msg, "42s")
		assert.Contains(t, msg, "5s")
	})
}
