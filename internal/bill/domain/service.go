package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Share is one user's explicit portion of a bill, in cents.
type Share struct {
	UserID snowflake.ID `json:"user_id"`
	Amount int64        `json:"amount"`
}

// CreateBillRequest describes a new shared bill. When Shares is empty the
// total is split equally across the house's members, spare cents going to
// the earliest joiners.
type CreateBillRequest struct {
	HouseID     snowflake.ID `json:"house_id"`
	Description string       `json:"description"`
	TotalAmount int64        `json:"total_amount"`
	DueDate     time.Time    `json:"due_date"`
	Shares      []Share      `json:"shares,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateBillRequest) (*Bill, []*Charge, error)

	Get(ctx context.Context, id snowflake.ID) (*Bill, error)

	// Charges lists a bill's charges.
	Charges(ctx context.Context, billID snowflake.ID) ([]*Charge, error)

	// MarkChargePaid settles a charge the normal way, member paying the
	// biller directly. Advanced charges must be settled through the
	// advance path so the repayment lands in the ledger.
	MarkChargePaid(ctx context.Context, chargeID snowflake.ID) (*Charge, error)

	// UnpaidCharges lists a house's open charges, oldest due date first.
	UnpaidCharges(ctx context.Context, houseID snowflake.ID) ([]*Charge, error)
}

var (
	ErrNotFound          = errors.New("bill_not_found")
	ErrChargeNotFound    = errors.New("charge_not_found")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidSplit      = errors.New("invalid_split")
	ErrChargeAdvanced    = errors.New("charge_advanced")
	ErrChargeAlreadyPaid = errors.New("charge_already_paid")
)
