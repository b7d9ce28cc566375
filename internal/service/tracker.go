package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/metrics"
	"linkpage-backend/internal/notify"
	"linkpage-backend/internal/repository"
	"linkpage-backend/pkg/useragent"
)

var (
	// ErrInvalidEvent is returned when the request fails validation.
	ErrInvalidEvent = errors.New("invalid tracking event")
	// ErrNotificationFailed is returned when the event was handled but Telegram delivery failed.
	ErrNotificationFailed = errors.New("failed to deliver notification")
)

// TrackRequest is the body of POST /api/track.
type TrackRequest struct {
	Type string  `json:"type" validate:"required,oneof=page_view link_click age_warning bounce session_end"`
	Data Payload `json:"data"`
}

// Payload is the free-form event data sent by the landing page.
type Payload struct {
	VisitorID    *string `json:"visitorId"`
	IsNewVisitor *bool   `json:"isNewVisitor"`
	VisitCount   *int    `json:"visitCount" validate:"omitempty,min=0"`

	Location *Location `json:"location"`
	// Device is either a DeviceDetails object or a legacy device type string.
	Device  json.RawMessage `json:"device"`
	Browser *string         `json:"browser"`

	Referrer       *string `json:"referrer"`
	SourcePlatform *string `json:"sourcePlatform"`
	PageURL        *string `json:"pageUrl"`

	TimeOnPage        *int `json:"timeOnPage" validate:"omitempty,min=0"`
	TimeToInteraction *int `json:"timeToInteraction" validate:"omitempty,min=0"`
	SessionDuration   *int `json:"sessionDuration" validate:"omitempty,min=0"`

	LinkName    *string `json:"linkName"`
	LinkURL     *string `json:"linkUrl"`
	AgeVerified *bool   `json:"ageVerified"`

	UserAgent *string `json:"userAgent"`
	Timestamp *string `json:"timestamp"`
}

// Location as resolved by the client's geo lookup.
type Location struct {
	City        *string `json:"city"`
	Country     *string `json:"country"`
	CountryCode *string `json:"countryCode"`
	IP          *string `json:"ip"`
}

// DeviceDetails is the structured device object.
type DeviceDetails struct {
	Type             *string `json:"type"`
	Browser          *string `json:"browser"`
	Platform         *string `json:"platform"`
	ScreenResolution *string `json:"screenResolution"`
	Viewport         *string `json:"viewport"`
	Language         *string `json:"language"`
	IsTouch          *bool   `json:"isTouch"`
}

// RequestMeta carries values taken from the HTTP request rather than the body.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// UserAgentParser classifies raw User-Agent strings.
type UserAgentParser interface {
	Parse(userAgent string) useragent.DeviceInfo
}

// TrackerService stores incoming events and forwards them to Telegram.
type TrackerService struct {
	storage  repository.Storage
	notifier notify.Notifier
	ua       UserAgentParser
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewTrackerService(storage repository.Storage, notifier notify.Notifier, ua UserAgentParser, log *zap.Logger) *TrackerService {
	return &TrackerService{
		storage:  storage,
		notifier: notifier,
		ua:       ua,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// Track validates, normalizes, persists and notifies. A storage failure is
// logged and does not fail the call; a notification failure does, but the
// stored row is kept.
func (s *TrackerService) Track(ctx context.Context, req *TrackRequest, meta RequestMeta) (*domain.Event, error) {
	if err := s.validate.Struct(req); err != nil {
		metrics.EventsRejected.Inc()
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
		}
		s.log.Debug("rejected tracking event", zap.String("type", req.Type), zap.Strings("fields", fields))
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(fields, ", "))
	}

	event, err := Normalize(req, meta, s.ua)
	if err != nil {
		metrics.EventsRejected.Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	metrics.EventsReceived.WithLabelValues(string(event.EventType), deref(event.SourcePlatform)).Inc()

	if err := s.storage.SaveEvent(ctx, event); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		s.log.Error("failed to store event, continuing with notification",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
	}

	if err := s.notifier.Notify(ctx, notify.FormatMessage(event, s.now())); err != nil {
		return event, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	s.log.Info("event tracked",
		zap.String("event_type", string(event.EventType)),
		zap.String("visitor_id", deref(event.VisitorID)),
		zap.String("source", deref(event.SourcePlatform)),
	)
	return event, nil
}

// Normalize maps a request onto an Event row. Missing optional values stay nil.
func Normalize(req *TrackRequest, meta RequestMeta, ua UserAgentParser) (*domain.Event, error) {
	eventType, err := domain.ParseEventType(req.Type)
	if err != nil {
		return nil, err
	}
	d := req.Data

	e := &domain.Event{
		EventType:         eventType,
		VisitorID:         clip(d.VisitorID, 100),
		IsNewVisitor:      d.IsNewVisitor,
		VisitCount:        d.VisitCount,
		Referrer:          nonEmpty(d.Referrer),
		PageURL:           nonEmpty(d.PageURL),
		TimeOnPage:        d.TimeOnPage,
		TimeToInteraction: d.TimeToInteraction,
		SessionDuration:   d.SessionDuration,
		UserAgent:         nonEmpty(d.UserAgent),
	}

	if loc := d.Location; loc != nil {
		e.City = clip(loc.City, 100)
		e.Country = clip(loc.Country, 100)
		e.CountryCode = clip(loc.CountryCode, 10)
		e.IP = clip(loc.IP, 50)
	}
	if e.IP == nil && meta.ClientIP != "" {
		e.IP = clip(&meta.ClientIP, 50)
	}
	if e.UserAgent == nil && meta.UserAgent != "" {
		e.UserAgent = &meta.UserAgent
	}

	device, err := decodeDevice(d.Device)
	if err != nil {
		return nil, err
	}
	e.DeviceType = clip(device.Type, 50)
	e.Browser = clip(device.Browser, 50)
	if e.Browser == nil {
		e.Browser = clip(d.Browser, 50)
	}
	e.Platform = clip(device.Platform, 50)
	e.ScreenResolution = clip(device.ScreenResolution, 20)
	e.Viewport = clip(device.Viewport, 20)
	e.Language = clip(device.Language, 20)
	e.IsTouch = device.IsTouch

	if e.UserAgent != nil && ua != nil && (e.DeviceType == nil || e.Browser == nil || e.Platform == nil) {
		info := ua.Parse(*e.UserAgent)
		if e.DeviceType == nil {
			e.DeviceType = known(info.DeviceType)
		}
		if e.Browser == nil {
			e.Browser = clip(known(info.Browser), 50)
		}
		if e.Platform == nil {
			e.Platform = clip(known(info.OS), 50)
		}
	}

	source := domain.DetectSourcePlatform(deref(e.UserAgent), deref(e.Referrer))
	if d.SourcePlatform != nil {
		if p, ok := domain.ParseSourcePlatform(*d.SourcePlatform); ok {
			source = p
		}
	}
	sourceStr := string(source)
	e.SourcePlatform = &sourceStr

	if eventType == domain.EventLinkClick {
		e.LinkName = nonEmpty(d.LinkName)
		e.LinkURL = nonEmpty(d.LinkURL)
		e.AgeVerified = d.AgeVerified
	}

	return e, nil
}

func decodeDevice(raw json.RawMessage) (DeviceDetails, error) {
	var dev DeviceDetails
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return dev, nil
	}
	if raw[0] == '"' {
		var legacy string
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return dev, fmt.Errorf("device: %w", err)
		}
		dev.Type = nonEmpty(&legacy)
		return dev, nil
	}
	if err := json.Unmarshal(raw, &dev); err != nil {
		return dev, fmt.Errorf("device: %w", err)
	}
	return dev, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// clip trims s and cuts it to the column width in runes.
func clip(s *string, n int) *string {
	v := nonEmpty(s)
	if v == nil {
		return nil
	}
	if r := []rune(*v); len(r) > n {
		cut := string(r[:n])
		return &cut
	}
	return v
}

func known(s string) *string {
	if s == "" || s == "unknown" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
