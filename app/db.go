package app

import (
	"context"

	"github.com/fiffu/mangawatch/config"
	"github.com/fiffu/mangawatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := models.OpenDatabase(cfg.DatabasePath, nil)
	if err != nil {
		log.Sugar().Errorw("Failed to connect database", "path", cfg.DatabasePath, "err", err)
		return nil, err
	}
	log.Sugar().Infow("Database started", "path", cfg.DatabasePath)

	log.Info("Starting migrations")
	if err := models.Migrate(db); err != nil {
		log.Sugar().Errorw("Migration failed", "err", err)
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}
