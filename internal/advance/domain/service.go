package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
)

type Service interface {
	// Allowance returns the house's current advance ceiling in cents,
	// rounded to whole dollars.
	Allowance(ctx context.Context, houseID snowflake.ID) (int64, error)

	// Usage returns the house's full advance position, including the
	// ledger audit cross-check.
	Usage(ctx context.Context, houseID snowflake.ID) (*Usage, error)

	// CanAdvance evaluates whether the house could advance the given
	// amount right now. Advisory only; AdvanceUnpaidCharges re-validates
	// inside its transaction.
	CanAdvance(ctx context.Context, houseID snowflake.ID, amount int64) (Decision, error)

	// AdvanceUnpaidCharges fronts every unpaid, not-yet-advanced charge of
	// a bill, all or nothing. When the bill has no such charges the call
	// is a no-op with a zero result.
	AdvanceUnpaidCharges(ctx context.Context, billID snowflake.ID) (*AdvanceResult, error)

	// AdvancedCharges lists the house's outstanding advances, oldest
	// advance first. Repaid charges drop out of the listing.
	AdvancedCharges(ctx context.Context, houseID snowflake.ID) ([]*billdomain.Charge, error)

	// SettleAdvancedCharge records repayment of one advanced charge:
	// charge goes PAID, repayment lands in the ledger. Settling an
	// already-settled charge is a no-op returning the charge as stored.
	SettleAdvancedCharge(ctx context.Context, chargeID snowflake.ID) (*billdomain.Charge, error)
}

var (
	ErrBillNotFound          = errors.New("bill_not_found")
	ErrChargeNotFound        = errors.New("charge_not_found")
	ErrChargeNotAdvanced     = errors.New("charge_not_advanced")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrInvalidAmount         = errors.New("invalid_amount")
)
