// Package domain contains the append-only advance ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionTypeAdvance          TransactionType = "ADVANCE"
	TransactionTypeAdvanceRepayment TransactionType = "ADVANCE_REPAYMENT"
	TransactionTypeCreditUsage      TransactionType = "CREDIT_USAGE"
	TransactionTypeAdjustment       TransactionType = "ADJUSTMENT"
)

// TransactionMetadata is the structured diagnostic blob per entry.
type TransactionMetadata struct {
	BillID        snowflake.ID `json:"bill_id,omitempty"`
	ChargeDueDate *time.Time   `json:"charge_due_date,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// Transaction is an immutable ledger entry. Rows are never updated or
// deleted; corrections are new ADJUSTMENT entries.
type Transaction struct {
	ID            snowflake.ID                            `gorm:"primaryKey"`
	HouseID       snowflake.ID                            `gorm:"not null;index"`
	ChargeID      *snowflake.ID                           `gorm:"index"`
	Type          TransactionType                         `gorm:"type:text;not null;index"`
	Amount        int64                                   `gorm:"not null"`
	BalanceBefore int64                                   `gorm:"not null"`
	BalanceAfter  int64                                   `gorm:"not null"`
	Description   string                                  `gorm:"type:text"`
	Metadata      datatypes.JSONType[TransactionMetadata] `gorm:"type:jsonb"`
	CreatedAt     time.Time                               `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
