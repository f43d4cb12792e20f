package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TypeTotals holds per-type sums for one house, in cents.
type TypeTotals struct {
	Advanced    int64
	Repaid      int64
	CreditUsage int64
	Adjustments int64
}

// Outstanding is the transaction-based view of fronted money still owed:
// advances plus credit usage minus repayments. It exists as a standing audit
// against the state-based figure, never as the gating input.
func (t TypeTotals) Outstanding() int64 {
	return t.Advanced + t.CreditUsage - t.Repaid
}

type Service interface {
	// Append inserts an entry inside the caller's transaction. Balance
	// fields are the caller's responsibility; the ledger never recomputes
	// them after the fact.
	Append(ctx context.Context, tx *gorm.DB, entry *Transaction) error

	// Totals sums entries by type for a house. Pass tx to read inside an
	// open transaction, or nil for a plain read.
	Totals(ctx context.Context, tx *gorm.DB, houseID snowflake.ID) (TypeTotals, error)

	// RecordAdjustment appends an operator correction in its own
	// transaction.
	RecordAdjustment(ctx context.Context, houseID snowflake.ID, amount int64, reason string) (*Transaction, error)

	// List returns a house's entries, newest first.
	List(ctx context.Context, houseID snowflake.ID, limit int) ([]*Transaction, error)
}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrEmptyReason   = errors.New("empty_reason")
)
