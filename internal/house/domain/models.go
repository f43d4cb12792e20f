// Package domain contains persistence models for houses.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// House is a tenant unit with many members sharing bills.
type House struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (House) TableName() string { return "houses" }

// HouseMember links a user to a house.
type HouseMember struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	HouseID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_house_member,priority:1"`
	UserID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_house_member,priority:2"`
	JoinedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (HouseMember) TableName() string { return "house_members" }
