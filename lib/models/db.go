package models

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase opens the sqlite file at path with foreign keys enforced.
// The pool holds a single connection, so statements never interleave.
func OpenDatabase(path string, lg logger.Interface) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	if lg == nil {
		lg = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: lg})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate creates or updates the tables. Chapters go before mangas so the
// foreign key target exists.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Chapter{},
		&Manga{},
		&Subscription{},
	)
}
