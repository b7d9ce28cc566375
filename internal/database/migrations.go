package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"linkpage-backend/internal/domain"
)

// AutoMigrate создает таблицу analytics и ее индексы
// (event_type, visitor_id, created_at, is_new_visitor)
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	models := []interface{}{
		&domain.Event{},
	}

	for _, model := range models {
		modelName := fmt.Sprintf("%T", model)
		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model",
				zap.String("model", modelName),
				zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
		log.Info("model migrated successfully", zap.String("model", modelName))
	}

	log.Info("database auto-migration completed successfully", zap.Int("migrated_models", len(models)))
	return nil
}
