package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Listing struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ExternalID *string `gorm:"type:varchar(100);uniqueIndex"`
	SellerID   uint64  `gorm:"not null;index"`

	Title        string  `gorm:"type:text;not null"`
	Description  *string `gorm:"type:text"`
	Category     *string `gorm:"type:varchar(100);index"`
	CategoryList *string `gorm:"type:text"`
	Condition    *string `gorm:"type:varchar(50)"`

	Price    *decimal.Decimal `gorm:"type:numeric(20,2)"`
	Currency string           `gorm:"type:varchar(10);not null;default:'USD'"`

	Visible bool `gorm:"not null;default:true;index"`
	Active  bool `gorm:"not null;default:true;index"`

	PhotoURL *string `gorm:"type:text"`

	ListedAt         *time.Time `gorm:"type:timestamptz"`
	RemoteModifiedAt *time.Time `gorm:"type:timestamptz;index"`
	LastSeenAt       time.Time  `gorm:"type:timestamptz;not null"`

	RawJSON datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
