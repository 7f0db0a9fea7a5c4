package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BidStatusPending   = "pending"
	BidStatusAccepted  = "accepted"
	BidStatusDeclined  = "declined"
	BidStatusWithdrawn = "withdrawn"
	BidStatusCompleted = "completed"
)

type Bid struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ListingID uint64 `gorm:"not null;index"`
	BuyerID   uint64 `gorm:"not null;index"`

	Amount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status string          `gorm:"type:varchar(20);not null;default:'pending';index"`

	DealExternalID *string `gorm:"type:varchar(100);uniqueIndex"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Bid) TableName() string {
	return "bids"
}
