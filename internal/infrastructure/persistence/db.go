package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cipherroom/gateway/internal/infrastructure/config"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
)

// NewDBConnection opens the configured SQL driver and runs the gorm
// auto-migration for every persisted model.
func NewDBConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// autoMigrate creates or updates every persisted model's table.
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MessageModel{},
		&models.RoomModel{},
		&models.MemberModel{},
		&models.ModerationBatchModel{},
		&models.UserModerationStatusModel{},
		&models.RoomContextModel{},
		&models.DailySummaryModel{},
		&models.RoomNoteModel{},
		&models.WorkflowDefinitionModel{},
		&models.WorkflowExecutionModel{},
		&models.DeferredExecutionModel{},
		&models.ProactiveSignalsModel{},
		&models.TaskStateModel{},
		&models.ResultSetModel{},
		&models.IntegrationModel{},
	)
}
