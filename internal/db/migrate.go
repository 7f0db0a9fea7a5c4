package db

import (
	"stockyard/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Seller{},
		&models.Listing{},
		&models.Bid{},
		&models.WatchEntry{},
		&models.SyncRun{},
	)
}
