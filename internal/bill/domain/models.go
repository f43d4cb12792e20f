// Package domain contains persistence models for bills and charges.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ChargeStatus represents charge lifecycle states.
type ChargeStatus string

const (
	ChargeStatusUnpaid     ChargeStatus = "UNPAID"
	ChargeStatusPaid       ChargeStatus = "PAID"
	ChargeStatusProcessing ChargeStatus = "PROCESSING"
	ChargeStatusFailed     ChargeStatus = "FAILED"
)

// Bill is one shared household obligation, split into per-user charges.
type Bill struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	HouseID     snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text"`
	TotalAmount int64        `gorm:"not null;default:0"`
	DueDate     time.Time    `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// Charge is one user's share of a bill. Amounts are cents.
//
// Advanced means the platform has fronted this charge; status stays UNPAID
// because the user still owes the money, only the recipient changed.
type Charge struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BillID     snowflake.ID `gorm:"not null;index"`
	HouseID    snowflake.ID `gorm:"not null;index"`
	UserID     snowflake.ID `gorm:"not null;index"`
	Amount     int64        `gorm:"not null"`
	Status     ChargeStatus `gorm:"type:text;not null;default:'UNPAID'"`
	DueDate    time.Time    `gorm:"not null"`
	Advanced   bool         `gorm:"not null;default:false;index"`
	AdvancedAt *time.Time   `gorm:""`
	RepaidAt   *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "charges" }
