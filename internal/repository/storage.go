package repository

import (
	"context"
	"errors"
	"time"

	"linkpage-backend/internal/domain"
)

var (
	// ErrTableMissing возвращается, когда таблица analytics еще не создана
	ErrTableMissing = errors.New("analytics table does not exist")
)

// Storage единый интерфейс доступа к хранилищу событий
type Storage interface {
	// SaveEvent добавляет событие; ID и CreatedAt заполняет хранилище
	SaveEvent(ctx context.Context, event *domain.Event) error

	// Counts считает сырые показатели дашборда за окно фильтра
	Counts(ctx context.Context, filter domain.Filter) (*domain.Counts, error)
	// RecentEvents возвращает последние события, самые новые первыми
	RecentEvents(ctx context.Context, filter domain.Filter, limit int) ([]domain.Event, error)
	// VisitorEvents возвращает события с visitor_id, отсортированные по visitor_id и времени
	VisitorEvents(ctx context.Context, filter domain.Filter) ([]domain.Event, error)

	// Diagnostics состояние хранилища для db-check
	Diagnostics(ctx context.Context) (*Diagnostics, error)
	Ping(ctx context.Context) error
}

// Diagnostics результат проверки хранилища
type Diagnostics struct {
	Backend      string    `json:"backend"`
	ServerTime   time.Time `json:"serverTime"`
	TableExists  bool      `json:"tableExists"`
	TotalRecords int64     `json:"totalRecords"`
	Last24Hours  int64     `json:"last24Hours"`
}
