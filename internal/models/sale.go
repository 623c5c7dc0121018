package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a row of the analytics table loaded by the ELT destination.
type Sale struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	SaleDate     time.Time       `gorm:"type:timestamptz;not null;index"`
	Product      string          `gorm:"type:varchar(255);not null;index"`
	Quantity     int             `gorm:"not null;default:0"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2)"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CustomerName string          `gorm:"type:varchar(255);index"`
}

func (Sale) TableName() string {
	return "sales"
}
