// Package notify forwards visitor events to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"linkpage-backend/internal/config"
	"linkpage-backend/internal/metrics"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("telegram notifications temporarily unavailable")

// Notifier delivers a formatted message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SendMessageRequest is the Telegram sendMessage body.
type SendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// APIResponse is the common Telegram Bot API envelope.
type APIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIError is a non-OK answer from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram API error %d: %s", e.StatusCode, e.Description)
}

// rejected reports a request Telegram refused on its merits (bad chat,
// message too long). Those say nothing about Telegram's health, so they
// do not count toward opening the breaker. 429 does.
func rejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusTooManyRequests
}

// TelegramNotifier sends HTML messages through the Bot API.
type TelegramNotifier struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

// BreakerSettings controls when the notifier stops calling Telegram.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultBreakerSettings trips after 5 consecutive failures and retries after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// NewTelegramNotifier creates a notifier for the configured bot and chat.
func NewTelegramNotifier(cfg config.Telegram, bs BreakerSettings, log *zap.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		log:     log,
	}

	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || rejected(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("telegram").Set(0)

	return n
}

// Notify sends text to the chat. Errors from Telegram and from an open
// breaker are both returned to the caller.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	start := time.Now()
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.send(ctx, text)
	})
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotificationsSent.WithLabelValues("rejected").Inc()
		n.log.Warn("telegram notification skipped, breaker open")
		return ErrUnavailable
	case err != nil:
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		n.log.Error("failed to send telegram notification", zap.Error(err))
		return err
	}

	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	n.log.Debug("telegram notification sent", zap.Int("length", len(text)))
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(SendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		code := resp.StatusCode
		if code == http.StatusOK && apiResp.ErrorCode != 0 {
			code = apiResp.ErrorCode
		}
		return &APIError{StatusCode: code, Description: apiResp.Description}
	}
	return nil
}

// Disabled is used when no bot token or chat is configured.
type Disabled struct {
	log *zap.Logger
}

func NewDisabled(log *zap.Logger) *Disabled {
	return &Disabled{log: log}
}

func (d *Disabled) Notify(_ context.Context, _ string) error {
	d.log.Debug("telegram not configured, notification dropped")
	return nil
}

// New returns a TelegramNotifier when cfg is complete, otherwise Disabled.
func New(cfg config.Telegram, log *zap.Logger) Notifier {
	if !cfg.Enabled() {
		log.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, notifications disabled")
		return NewDisabled(log)
	}
	return NewTelegramNotifier(cfg, DefaultBreakerSettings(), log)
}
