// Package domain contains the house status index and its history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SnapshotType classifies history rows for retention purposes. Weekly rows
// are purged after the retention window; monthly and quarterly are kept.
type SnapshotType string

const (
	SnapshotTypeWeekly    SnapshotType = "weekly"
	SnapshotTypeMonthly   SnapshotType = "monthly"
	SnapshotTypeQuarterly SnapshotType = "quarterly"
)

// RiskDetails is the structured diagnostic blob behind a score.
type RiskDetails struct {
	TotalCharges           int     `json:"total_charges"`
	TotalChargeAmount      int64   `json:"total_charge_amount"`
	UnpaidChargesCount     int     `json:"unpaid_charges_count"`
	UnpaidAmount           int64   `json:"unpaid_amount"`
	WeightedUnpaidAmount   float64 `json:"weighted_unpaid_amount"`
	UsersWithUnpaid        int     `json:"users_with_unpaid"`
	UsersWithCharges       int     `json:"users_with_charges"`
	GroupRiskRatio         float64 `json:"group_risk_ratio"`
	AverageDaysLate        float64 `json:"average_days_late"`
	FirstHalfPaymentRate   float64 `json:"first_half_payment_rate"`
	SecondHalfPaymentRate  float64 `json:"second_half_payment_rate"`
	FirstHalfParticipation float64 `json:"first_half_participation"`
	SecondHalfParticipation float64 `json:"second_half_participation"`
	TrendSignal            float64 `json:"trend_signal"`
}

// HouseStatusIndex is the current-state risk row, one per house,
// overwritten on each recomputation. History lives in HouseRiskHistory.
type HouseStatusIndex struct {
	ID                 snowflake.ID                    `gorm:"primaryKey"`
	HouseID            snowflake.ID                    `gorm:"not null;uniqueIndex"`
	Score              int                             `gorm:"not null;default:50"`
	Bracket            int                             `gorm:"not null;default:5"`
	FeeMultiplier      float64                         `gorm:"not null;default:1"`
	CreditMultiplier   float64                         `gorm:"not null;default:1"`
	CurrentRiskFactor  float64                         `gorm:"not null;default:0"`
	TrendFactor        float64                         `gorm:"not null;default:1"`
	RiskMultiplier     float64                         `gorm:"not null;default:1"`
	UnpaidChargesCount int                             `gorm:"not null;default:0"`
	UnpaidAmount       int64                           `gorm:"not null;default:0"`
	LastRiskAssessment time.Time                       `gorm:"not null;index"`
	RiskDetails        datatypes.JSONType[RiskDetails] `gorm:"type:jsonb"`
	UpdatedReason      string                          `gorm:"type:text"`
	CreatedAt          time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (HouseStatusIndex) TableName() string { return "house_status_indices" }

// HistoryMetadata annotates a snapshot row.
type HistoryMetadata struct {
	UpdatedReason      string `json:"updated_reason,omitempty"`
	UnpaidChargesCount int    `json:"unpaid_charges_count"`
	UnpaidAmount       int64  `json:"unpaid_amount"`
}

// HouseRiskHistory is an append-only per-assessment snapshot.
type HouseRiskHistory struct {
	ID             snowflake.ID                        `gorm:"primaryKey"`
	HouseID        snowflake.ID                        `gorm:"not null;index"`
	AssessmentDate time.Time                           `gorm:"not null;index"`
	RiskFactor     float64                             `gorm:"not null"`
	TrendFactor    float64                             `gorm:"not null"`
	Multiplier     float64                             `gorm:"not null"`
	HSIScore       int                                 `gorm:"not null"`
	FeeMultiplier  float64                             `gorm:"not null"`
	SnapshotType   SnapshotType                        `gorm:"type:text;not null;index"`
	Metadata       datatypes.JSONType[HistoryMetadata] `gorm:"type:jsonb"`
	CreatedAt      time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (HouseRiskHistory) TableName() string { return "house_risk_histories" }
