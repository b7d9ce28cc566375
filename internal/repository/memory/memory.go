package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/repository"
)

// MemStorage хранит события в памяти процесса. Используется, когда база
// данных не настроена, и в тестах.
type MemStorage struct {
	mu     sync.RWMutex
	events []domain.Event
	nextID int64
	now    func() time.Time
}

func New() *MemStorage {
	return &MemStorage{now: time.Now}
}

// NewWithClock позволяет тестам управлять временем created_at
func NewWithClock(now func() time.Time) *MemStorage {
	return &MemStorage{now: now}
}

func (s *MemStorage) SaveEvent(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	created := s.now()
	// created_at не убывает между вставками
	if n := len(s.events); n > 0 && created.Before(s.events[n-1].CreatedAt) {
		created = s.events[n-1].CreatedAt
	}
	event.CreatedAt = created
	s.events = append(s.events, *event)
	return nil
}

// filtered возвращает копии событий, попадающих в окно фильтра
func (s *MemStorage) filtered(filter domain.Filter) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		if !e.CreatedAt.After(filter.Since) {
			continue
		}
		if filter.Source != nil && (e.SourcePlatform == nil || *e.SourcePlatform != string(*filter.Source)) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *MemStorage) Counts(_ context.Context, filter domain.Filter) (*domain.Counts, error) {
	events := s.filtered(filter)

	visitors := make(map[string]struct{})
	clickers := make(map[string]struct{})
	locations := make(map[[2]string]int64)
	links := make(map[string]int64)
	devices := make(map[string]int64)
	browsers := make(map[string]int64)
	var ttiSum, ttiCount int64

	c := &domain.Counts{}
	for _, e := range events {
		switch e.EventType {
		case domain.EventPageView:
			visitors[visitorKey(e)] = struct{}{}
			if e.IsNewVisitor != nil && *e.IsNewVisitor {
				c.NewVisitors++
			}
			if knownPlace(e.City) && knownPlace(e.Country) {
				locations[[2]string{*e.City, *e.Country}]++
			}
			if e.DeviceType != nil {
				devices[*e.DeviceType]++
			}
			if e.Browser != nil {
				browsers[*e.Browser]++
			}
		case domain.EventLinkClick:
			c.TotalClicks++
			clickers[visitorKey(e)] = struct{}{}
			if e.TimeToInteraction != nil {
				ttiSum += int64(*e.TimeToInteraction)
				ttiCount++
			}
			if e.LinkName != nil {
				links[*e.LinkName]++
			}
		case domain.EventBounce:
			c.Bounces++
		}
	}

	c.TotalVisitors = int64(len(visitors))
	c.VisitorsWhoClicked = int64(len(clickers))
	if ttiCount > 0 {
		c.AvgTimeToClick = float64(ttiSum) / float64(ttiCount)
	}

	for k, v := range locations {
		c.TopLocations = append(c.TopLocations, domain.LocationStat{City: k[0], Country: k[1], Visits: v})
	}
	sort.Slice(c.TopLocations, func(i, j int) bool {
		a, b := c.TopLocations[i], c.TopLocations[j]
		if a.Visits != b.Visits {
			return a.Visits > b.Visits
		}
		return a.City+a.Country < b.City+b.Country
	})
	if len(c.TopLocations) > 10 {
		c.TopLocations = c.TopLocations[:10]
	}

	for name, n := range links {
		c.LinkClicks = append(c.LinkClicks, domain.LinkStat{LinkName: name, Clicks: n})
	}
	sort.Slice(c.LinkClicks, func(i, j int) bool {
		if c.LinkClicks[i].Clicks != c.LinkClicks[j].Clicks {
			return c.LinkClicks[i].Clicks > c.LinkClicks[j].Clicks
		}
		return c.LinkClicks[i].LinkName < c.LinkClicks[j].LinkName
	})

	for d, n := range devices {
		c.Devices = append(c.Devices, domain.DeviceStat{DeviceType: d, Count: n})
	}
	sort.Slice(c.Devices, func(i, j int) bool {
		if c.Devices[i].Count != c.Devices[j].Count {
			return c.Devices[i].Count > c.Devices[j].Count
		}
		return c.Devices[i].DeviceType < c.Devices[j].DeviceType
	})

	for b, n := range browsers {
		c.Browsers = append(c.Browsers, domain.BrowserStat{Browser: b, Count: n})
	}
	sort.Slice(c.Browsers, func(i, j int) bool {
		if c.Browsers[i].Count != c.Browsers[j].Count {
			return c.Browsers[i].Count > c.Browsers[j].Count
		}
		return c.Browsers[i].Browser < c.Browsers[j].Browser
	})

	return c, nil
}

func (s *MemStorage) RecentEvents(_ context.Context, filter domain.Filter, limit int) ([]domain.Event, error) {
	events := s.filtered(filter)
	// события хранятся в порядке вставки
	out := make([]domain.Event, 0, min(limit, len(events)))
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

func (s *MemStorage) VisitorEvents(_ context.Context, filter domain.Filter) ([]domain.Event, error) {
	events := s.filtered(filter)
	out := events[:0]
	for _, e := range events {
		if e.VisitorID != nil && *e.VisitorID != "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].VisitorID != *out[j].VisitorID {
			return *out[i].VisitorID < *out[j].VisitorID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStorage) Diagnostics(_ context.Context) (*repository.Diagnostics, error) {
	now := s.now()
	d := &repository.Diagnostics{
		Backend:     "memory",
		ServerTime:  now,
		TableExists: true,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	d.TotalRecords = int64(len(s.events))
	for _, e := range s.events {
		if e.CreatedAt.After(now.Add(-24 * time.Hour)) {
			d.Last24Hours++
		}
	}
	return d, nil
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}

// visitorKey считает событие без visitor_id отдельным посетителем
func visitorKey(e domain.Event) string {
	if e.VisitorID != nil && *e.VisitorID != "" {
		return *e.VisitorID
	}
	return "anon:" + strconv.FormatInt(e.ID, 10)
}

func knownPlace(s *string) bool {
	return s != nil && *s != "" && *s != "Unknown"
}
