package models

import "time"

type WatchEntry struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ListingID uint64 `gorm:"not null;uniqueIndex:idx_watch_listing_buyer"`
	BuyerID   uint64 `gorm:"not null;uniqueIndex:idx_watch_listing_buyer"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (WatchEntry) TableName() string {
	return "watch_entries"
}
