package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"linkpage-backend/internal/domain"
	"linkpage-backend/internal/repository"
)

const topLocationsLimit = 10

// PostgresStorage реализует интерфейс Storage для PostgreSQL
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New создает новый экземпляр PostgreSQL storage
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// SaveEvent вставляет событие; id и created_at назначает база
func (s *PostgresStorage) SaveEvent(ctx context.Context, event *domain.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		s.log.Error("failed to save event", zap.String("event_type", string(event.EventType)), zap.Error(err))
		return fmt.Errorf("failed to save event: %w", err)
	}

	s.log.Debug("saved event", zap.Int64("id", event.ID), zap.String("event_type", string(event.EventType)))
	return nil
}

// window базовый запрос с окном времени и фильтром площадки
func (s *PostgresStorage) window(ctx context.Context, filter domain.Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&domain.Event{}).Where("created_at > ?", filter.Since)
	if filter.Source != nil {
		q = q.Where("source_platform = ?", string(*filter.Source))
	}
	return q
}

func (s *PostgresStorage) ensureTable(ctx context.Context) error {
	if !s.db.WithContext(ctx).Migrator().HasTable(&domain.Event{}) {
		return repository.ErrTableMissing
	}
	return nil
}

// distinctVisitors считает событие без visitor_id отдельным посетителем
const distinctVisitors = "COUNT(DISTINCT COALESCE(NULLIF(visitor_id, ''), 'anon:' || id::text))"

// unknownPlaces не попадают в топ локаций
var unknownPlaces = []string{"", "Unknown"}

// Counts считает все показатели сводки за окно
func (s *PostgresStorage) Counts(ctx context.Context, filter domain.Filter) (*domain.Counts, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var c domain.Counts
	pageViews := func() *gorm.DB { return s.window(ctx, filter).Where("event_type = ?", domain.EventPageView) }
	clicks := func() *gorm.DB { return s.window(ctx, filter).Where("event_type = ?", domain.EventLinkClick) }

	queries := []struct {
		name string
		run  func() error
	}{
		{"total_visitors", func() error {
			return pageViews().Select(distinctVisitors).Scan(&c.TotalVisitors).Error
		}},
		{"new_visitors", func() error {
			return pageViews().Where("is_new_visitor = ?", true).Count(&c.NewVisitors).Error
		}},
		{"total_clicks", func() error {
			return clicks().Count(&c.TotalClicks).Error
		}},
		{"visitors_who_clicked", func() error {
			return clicks().Select(distinctVisitors).Scan(&c.VisitorsWhoClicked).Error
		}},
		{"bounces", func() error {
			return s.window(ctx, filter).Where("event_type = ?", domain.EventBounce).Count(&c.Bounces).Error
		}},
		{"avg_time_to_click", func() error {
			return clicks().Where("time_to_interaction IS NOT NULL").
				Select("COALESCE(AVG(time_to_interaction), 0)::float8").Scan(&c.AvgTimeToClick).Error
		}},
		{"top_locations", func() error {
			return pageViews().
				Where("city IS NOT NULL AND city NOT IN ?", unknownPlaces).
				Where("country IS NOT NULL AND country NOT IN ?", unknownPlaces).
				Select("city, country, COUNT(*) AS visits").
				Group("city, country").Order("visits DESC").Limit(topLocationsLimit).
				Scan(&c.TopLocations).Error
		}},
		{"link_clicks", func() error {
			return clicks().Where("link_name IS NOT NULL").
				Select("link_name, COUNT(*) AS clicks").
				Group("link_name").Order("clicks DESC").
				Scan(&c.LinkClicks).Error
		}},
		{"devices", func() error {
			return pageViews().Where("device_type IS NOT NULL").
				Select("device_type, COUNT(*) AS count").
				Group("device_type").Order("count DESC").
				Scan(&c.Devices).Error
		}},
		{"browsers", func() error {
			return pageViews().Where("browser IS NOT NULL").
				Select("browser, COUNT(*) AS count").
				Group("browser").Order("count DESC").
				Scan(&c.Browsers).Error
		}},
	}

	for _, q := range queries {
		if err := q.run(); err != nil {
			s.log.Error("failed to compute summary", zap.String("query", q.name), zap.Error(err))
			return nil, fmt.Errorf("failed to compute %s: %w", q.name, err)
		}
	}

	return &c, nil
}

// RecentEvents возвращает последние события за окно
func (s *PostgresStorage) RecentEvents(ctx context.Context, filter domain.Filter, limit int) ([]domain.Event, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var events []domain.Event
	err := s.window(ctx, filter).Order("created_at DESC").Limit(limit).Find(&events).Error
	if err != nil {
		s.log.Error("failed to get recent events", zap.Error(err))
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	return events, nil
}

// VisitorEvents возвращает события посетителей для построения путей
func (s *PostgresStorage) VisitorEvents(ctx context.Context, filter domain.Filter) ([]domain.Event, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var events []domain.Event
	err := s.window(ctx, filter).
		Where("visitor_id IS NOT NULL AND visitor_id <> ''").
		Order("visitor_id, created_at ASC").
		Find(&events).Error
	if err != nil {
		s.log.Error("failed to get visitor events", zap.Error(err))
		return nil, fmt.Errorf("failed to get visitor events: %w", err)
	}
	return events, nil
}

// Diagnostics проверяет подключение и состояние таблицы
func (s *PostgresStorage) Diagnostics(ctx context.Context) (*repository.Diagnostics, error) {
	d := &repository.Diagnostics{Backend: "postgres"}

	if err := s.db.WithContext(ctx).Raw("SELECT NOW()").Scan(&d.ServerTime).Error; err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	d.TableExists = s.db.WithContext(ctx).Migrator().HasTable(&domain.Event{})
	if !d.TableExists {
		return d, nil
	}

	if err := s.db.WithContext(ctx).Model(&domain.Event{}).Count(&d.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	err := s.db.WithContext(ctx).Model(&domain.Event{}).
		Where("created_at > ?", time.Now().Add(-24*time.Hour)).
		Count(&d.Last24Hours).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recent events: %w", err)
	}

	return d, nil
}

// Ping проверяет соединение с базой
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
