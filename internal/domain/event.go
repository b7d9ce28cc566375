package domain

import (
	"fmt"
	"time"
)

// EventType тип отслеживаемого события посетителя
type EventType string

const (
	EventPageView   EventType = "page_view"
	EventLinkClick  EventType = "link_click"
	EventAgeWarning EventType = "age_warning"
	EventBounce     EventType = "bounce"
	EventSessionEnd EventType = "session_end"
)

// EventTypes все допустимые типы событий
var EventTypes = []EventType{EventPageView, EventLinkClick, EventAgeWarning, EventBounce, EventSessionEnd}

// ParseEventType проверяет, что строка является известным типом события
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Event представляет одно взаимодействие посетителя со страницей.
// Строки только добавляются: обновления и удаления не поддерживаются.
type Event struct {
	ID            int64     `gorm:"primaryKey;column:id" json:"id"`
	EventType     EventType `gorm:"column:event_type;size:50;not null;index:idx_event_type" json:"event_type"`
	VisitorID     *string   `gorm:"column:visitor_id;size:100;index:idx_visitor_id" json:"visitor_id"`
	IsNewVisitor  *bool     `gorm:"column:is_new_visitor;index:idx_is_new_visitor" json:"is_new_visitor"`
	VisitCount    *int      `gorm:"column:visit_count" json:"visit_count"`

	// Местоположение
	City        *string `gorm:"column:city;size:100" json:"city"`
	Country     *string `gorm:"column:country;size:100" json:"country"`
	CountryCode *string `gorm:"column:country_code;size:10" json:"country_code"`
	IP          *string `gorm:"column:ip;size:50" json:"ip"`

	// Устройство
	DeviceType       *string `gorm:"column:device_type;size:50" json:"device_type"`
	Browser          *string `gorm:"column:browser;size:50" json:"browser"`
	Platform         *string `gorm:"column:platform;size:50" json:"platform"`
	ScreenResolution *string `gorm:"column:screen_resolution;size:20" json:"screen_resolution"`
	Viewport         *string `gorm:"column:viewport;size:20" json:"viewport"`
	Language         *string `gorm:"column:language;size:20" json:"language"`
	IsTouch          *bool   `gorm:"column:is_touch" json:"is_touch"`

	// Источник перехода
	Referrer       *string `gorm:"column:referrer;type:text" json:"referrer"`
	SourcePlatform *string `gorm:"column:source_platform;size:50" json:"source_platform"`
	PageURL        *string `gorm:"column:page_url;type:text" json:"page_url"`

	// Время в секундах
	TimeOnPage        *int `gorm:"column:time_on_page" json:"time_on_page"`
	TimeToInteraction *int `gorm:"column:time_to_interaction" json:"time_to_interaction"`
	SessionDuration   *int `gorm:"column:session_duration" json:"session_duration"`

	// Только для link_click
	LinkName    *string `gorm:"column:link_name;type:text" json:"link_name"`
	LinkURL     *string `gorm:"column:link_url;type:text" json:"link_url"`
	AgeVerified *bool   `gorm:"column:age_verified" json:"age_verified"`

	UserAgent *string   `gorm:"column:user_agent;type:text" json:"user_agent"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;default:now();index:idx_created_at;<-:create" json:"created_at"`
}

// TableName возвращает название таблицы для GORM
func (Event) TableName() string {
	return "analytics"
}

// Location возвращает "Город, Страна" с подстановкой Unknown
func (e *Event) Location() string {
	return orUnknown(e.City) + ", " + orUnknown(e.Country)
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return *s
}
