package domain

import (
	"math"
	"time"
)

// TimeRange окно выборки для дашборда
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
)

// ParseTimeRange возвращает Range24h для пустых и неизвестных значений
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(s) {
	case Range7d:
		return Range7d
	case Range30d:
		return Range30d
	default:
		return Range24h
	}
}

// Duration длительность окна
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range7d:
		return 7 * 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Filter параметры выборки событий
type Filter struct {
	Since  time.Time
	Source *SourcePlatform // nil - все площадки
}

// NewFilter строит фильтр для окна, заканчивающегося в now
func NewFilter(r TimeRange, source string, now time.Time) Filter {
	f := Filter{Since: now.Add(-r.Duration())}
	if p, ok := ParseSourcePlatform(source); ok {
		f.Source = &p
	}
	return f
}

// LocationStat посещения по паре (город, страна)
type LocationStat struct {
	City    string `json:"city" gorm:"column:city"`
	Country string `json:"country" gorm:"column:country"`
	Visits  int64  `json:"visits" gorm:"column:visits"`
}

// LinkStat клики по ссылке
type LinkStat struct {
	LinkName string `json:"linkName" gorm:"column:link_name"`
	Clicks   int64  `json:"clicks" gorm:"column:clicks"`
}

// DeviceStat просмотры по типу устройства
type DeviceStat struct {
	DeviceType string `json:"deviceType" gorm:"column:device_type"`
	Count      int64  `json:"count" gorm:"column:count"`
}

// BrowserStat просмотры по браузеру
type BrowserStat struct {
	Browser string `json:"browser" gorm:"column:browser"`
	Count   int64  `json:"count" gorm:"column:count"`
}

// Counts сырые счетчики, которые считает хранилище
type Counts struct {
	TotalVisitors      int64
	NewVisitors        int64
	TotalClicks        int64
	VisitorsWhoClicked int64
	Bounces            int64
	AvgTimeToClick     float64
	TopLocations       []LocationStat
	LinkClicks         []LinkStat
	Devices            []DeviceStat
	Browsers           []BrowserStat
}

// Summary сводная статистика дашборда
type Summary struct {
	TotalVisitors      int64          `json:"totalVisitors"`
	NewVisitors        int64          `json:"newVisitors"`
	ReturningVisitors  int64          `json:"returningVisitors"`
	TotalClicks        int64          `json:"totalClicks"`
	VisitorsWhoClicked int64          `json:"visitorsWhoClicked"`
	Bounces            int64          `json:"bounces"`
	AvgTimeToClick     float64        `json:"avgTimeToClick"`
	ConversionRate     float64        `json:"conversionRate"`
	BounceRate         float64        `json:"bounceRate"`
	TopLocations       []LocationStat `json:"topLocations"`
	LinkClicks         []LinkStat     `json:"linkClicks"`
	Devices            []DeviceStat   `json:"devices"`
	Browsers           []BrowserStat  `json:"browsers"`
}

// EmptySummary нулевая статистика; списки пустые, а не nil
func EmptySummary() Summary {
	return Summary{
		TopLocations: []LocationStat{},
		LinkClicks:   []LinkStat{},
		Devices:      []DeviceStat{},
		Browsers:     []BrowserStat{},
	}
}

// NewSummary считает производные показатели из сырых счетчиков
func NewSummary(c Counts) Summary {
	s := EmptySummary()
	s.TotalVisitors = c.TotalVisitors
	s.NewVisitors = c.NewVisitors
	s.ReturningVisitors = max(c.TotalVisitors-c.NewVisitors, 0)
	s.TotalClicks = c.TotalClicks
	s.VisitorsWhoClicked = c.VisitorsWhoClicked
	s.Bounces = c.Bounces
	s.AvgTimeToClick = c.AvgTimeToClick
	s.ConversionRate = Rate(c.VisitorsWhoClicked, c.TotalVisitors)
	s.BounceRate = Rate(c.Bounces, c.TotalVisitors)
	if c.TopLocations != nil {
		s.TopLocations = c.TopLocations
	}
	if c.LinkClicks != nil {
		s.LinkClicks = c.LinkClicks
	}
	if c.Devices != nil {
		s.Devices = c.Devices
	}
	if c.Browsers != nil {
		s.Browsers = c.Browsers
	}
	return s
}

// Rate процент part от total, ограниченный [0, 100] и округленный до
// одного знака. При total == 0 возвращает 0.
func Rate(part, total int64) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	pct := float64(part) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}
