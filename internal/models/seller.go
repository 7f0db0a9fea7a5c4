package models

import "time"

type Seller struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement"`
	ExternalID *string `gorm:"type:varchar(100);uniqueIndex"`

	Name    string  `gorm:"type:text;not null"`
	Company *string `gorm:"type:text"`
	Email   *string `gorm:"type:varchar(255)"`
	Phone   *string `gorm:"type:varchar(50)"`
	Region  *string `gorm:"type:varchar(100)"`

	Active bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Seller) TableName() string {
	return "sellers"
}
