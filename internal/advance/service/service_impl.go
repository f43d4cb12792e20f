package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	advancedomain "github.com/splitnest/splitnest/internal/advance/domain"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	"github.com/splitnest/splitnest/internal/locking"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Risk   riskdomain.Service
	Ledger ledgerdomain.Service
	Keyed  *locking.KeyedLock
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	cfg    config.Config
	risk   riskdomain.Service
	ledger ledgerdomain.Service
	keyed  *locking.KeyedLock
}

func NewService(p ServiceParam) advancedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("advance.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		cfg:    p.Cfg,
		risk:   p.Risk,
		ledger: p.Ledger,
		keyed:  p.Keyed,
	}
}

func advanceLockKey(houseID snowflake.ID) string {
	return fmt.Sprintf("splitnest:advance:%s", houseID)
}

// allowanceCents scales the base allowance by the credit multiplier and
// rounds to whole dollars, so allowances read cleanly in the app.
func allowanceCents(base int64, creditMultiplier float64) int64 {
	return int64(math.Round(float64(base)*creditMultiplier/100)) * 100
}

func (s *Service) creditMultiplier(ctx context.Context, houseID snowflake.ID) (float64, error) {
	current, err := s.risk.Current(ctx, houseID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		// Never-scored houses start at the neutral score.
		return 1.0, nil
	}
	return current.CreditMultiplier, nil
}

func (s *Service) Allowance(ctx context.Context, houseID snowflake.ID) (int64, error) {
	credit, err := s.creditMultiplier(ctx, houseID)
	if err != nil {
		return 0, err
	}
	return allowanceCents(s.cfg.BaseAdvanceAllowance, credit), nil
}

// outstandingAdvanced sums the charges the platform has fronted and not
// yet been repaid for. Charge state is authoritative here.
func (s *Service) outstandingAdvanced(ctx context.Context, tx *gorm.DB, houseID snowflake.ID) (int64, error) {
	if tx == nil {
		tx = s.db
	}
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM charges
		 WHERE house_id = ? AND advanced = ? AND status = ?`,
		houseID, true, billdomain.ChargeStatusUnpaid,
	).Scan(&total).Error
	return total, err
}

func (s *Service) Usage(ctx context.Context, houseID snowflake.ID) (*advancedomain.Usage, error) {
	allowance, err := s.Allowance(ctx, houseID)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.outstandingAdvanced(ctx, nil, houseID)
	if err != nil {
		return nil, err
	}
	totals, err := s.ledger.Totals(ctx, nil, houseID)
	if err != nil {
		return nil, err
	}

	remaining := allowance - outstanding
	if remaining < 0 {
		remaining = 0
	}

	usage := &advancedomain.Usage{
		HouseID:             houseID,
		Allowance:           allowance,
		OutstandingAdvanced: outstanding,
		Remaining:           remaining,
		TotalAdvanced:       totals.Advanced,
		TotalRepaid:         totals.Repaid,
		CreditUsage:         totals.CreditUsage,
		LedgerOutstanding:   totals.Outstanding(),
		AuditConsistent:     totals.Outstanding() == outstanding,
	}
	if !usage.AuditConsistent {
		s.log.Warn("advance ledger drift",
			zap.String("house_id", houseID.String()),
			zap.Int64("state_outstanding", outstanding),
			zap.Int64("ledger_outstanding", totals.Outstanding()),
		)
	}
	return usage, nil
}

func (s *Service) CanAdvance(ctx context.Context, houseID snowflake.ID, amount int64) (advancedomain.Decision, error) {
	if amount <= 0 {
		return advancedomain.Decision{}, advancedomain.ErrInvalidAmount
	}
	return s.evaluate(ctx, nil, houseID, amount)
}

func (s *Service) evaluate(ctx context.Context, tx *gorm.DB, houseID snowflake.ID, amount int64) (advancedomain.Decision, error) {
	credit, err := s.creditMultiplier(ctx, houseID)
	if err != nil {
		return advancedomain.Decision{}, err
	}
	allowance := allowanceCents(s.cfg.BaseAdvanceAllowance, credit)

	outstanding, err := s.outstandingAdvanced(ctx, tx, houseID)
	if err != nil {
		return advancedomain.Decision{}, err
	}

	remaining := allowance - outstanding
	if remaining < 0 {
		remaining = 0
	}

	decision := advancedomain.Decision{
		HouseID:     houseID,
		Requested:   amount,
		Allowance:   allowance,
		Outstanding: outstanding,
		Remaining:   remaining,
	}
	if amount <= remaining {
		decision.Allowed = true
	} else {
		decision.Shortfall = amount - remaining
	}
	return decision, nil
}

func (s *Service) AdvanceUnpaidCharges(ctx context.Context, billID snowflake.ID) (*advancedomain.AdvanceResult, error) {
	// Resolve the house first so the per-house lock covers the whole
	// transaction.
	var bill billdomain.Bill
	if err := s.db.WithContext(ctx).First(&bill, "id = ?", billID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, advancedomain.ErrBillNotFound
		}
		return nil, err
	}

	unlock := s.keyed.Lock(advanceLockKey(bill.HouseID))
	defer unlock()

	now := s.clock.Now()
	result := &advancedomain.AdvanceResult{BillID: billID, HouseID: bill.HouseID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked billdomain.Bill
		err := tx.WithContext(ctx).Raw(
			`SELECT * FROM bills WHERE id = ? FOR UPDATE`, billID,
		).Scan(&locked).Error
		if err != nil {
			return err
		}
		if locked.ID == 0 {
			return advancedomain.ErrBillNotFound
		}

		var charges []*billdomain.Charge
		err = tx.WithContext(ctx).Raw(
			`SELECT * FROM charges
			 WHERE bill_id = ? AND status = ? AND advanced = ?
			 ORDER BY id ASC
			 FOR UPDATE`,
			billID, billdomain.ChargeStatusUnpaid, false,
		).Scan(&charges).Error
		if err != nil {
			return err
		}
		if len(charges) == 0 {
			return nil
		}

		var needed int64
		for _, c := range charges {
			needed += c.Amount
		}

		// Re-validate against live state inside the transaction; the
		// advisory CanAdvance answer may be stale by now.
		decision, err := s.evaluate(ctx, tx, locked.HouseID, needed)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return fmt.Errorf("%w: need %d cents, %d remaining (short %d)",
				advancedomain.ErrInsufficientAllowance,
				needed, decision.Remaining, decision.Shortfall)
		}

		balance := decision.Outstanding
		for _, c := range charges {
			dueDate := c.DueDate
			entry := &ledgerdomain.Transaction{
				HouseID:       locked.HouseID,
				ChargeID:      &c.ID,
				Type:          ledgerdomain.TransactionTypeAdvance,
				Amount:        c.Amount,
				BalanceBefore: balance,
				BalanceAfter:  balance + c.Amount,
				Description:   fmt.Sprintf("advance for charge %s on bill %s", c.ID, billID),
				Metadata: datatypes.NewJSONType(ledgerdomain.TransactionMetadata{
					BillID:        billID,
					ChargeDueDate: &dueDate,
				}),
			}
			if err := s.ledger.Append(ctx, tx, entry); err != nil {
				return err
			}
			balance += c.Amount

			res := tx.WithContext(ctx).
				Model(&billdomain.Charge{}).
				Where("id = ?", c.ID).
				Updates(map[string]any{
					"advanced":    true,
					"advanced_at": now,
					"updated_at":  now,
				})
			if res.Error != nil {
				return res.Error
			}

			result.AdvancedCount++
			result.AdvancedAmount += c.Amount
			result.ChargeIDs = append(result.ChargeIDs, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AdvancedCount > 0 {
		s.log.Info("advanced unpaid charges",
			zap.String("bill_id", billID.String()),
			zap.String("house_id", bill.HouseID.String()),
			zap.Int("charges", result.AdvancedCount),
			zap.Int64("amount", result.AdvancedAmount),
		)
	}
	return result, nil
}

func (s *Service) AdvancedCharges(ctx context.Context, houseID snowflake.ID) ([]*billdomain.Charge, error) {
	// Only advances the platform is still owed for; repaid charges keep
	// advanced=true for the ledger trail but leave this listing.
	var charges []*billdomain.Charge
	err := s.db.WithContext(ctx).
		Where("house_id = ? AND advanced = ? AND status = ?", houseID, true, billdomain.ChargeStatusUnpaid).
		Order("advanced_at ASC").
		Find(&charges).Error
	return charges, err
}

func (s *Service) SettleAdvancedCharge(ctx context.Context, chargeID snowflake.ID) (*billdomain.Charge, error) {
	now := s.clock.Now()
	var settled billdomain.Charge

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge billdomain.Charge
		err := tx.WithContext(ctx).Raw(
			`SELECT * FROM charges WHERE id = ? FOR UPDATE`, chargeID,
		).Scan(&charge).Error
		if err != nil {
			return err
		}
		if charge.ID == 0 {
			return advancedomain.ErrChargeNotFound
		}
		if !charge.Advanced {
			return advancedomain.ErrChargeNotAdvanced
		}
		if charge.Status == billdomain.ChargeStatusPaid {
			settled = charge
			return nil
		}

		outstanding, err := s.outstandingAdvanced(ctx, tx, charge.HouseID)
		if err != nil {
			return err
		}

		entry := &ledgerdomain.Transaction{
			HouseID:       charge.HouseID,
			ChargeID:      &charge.ID,
			Type:          ledgerdomain.TransactionTypeAdvanceRepayment,
			Amount:        charge.Amount,
			BalanceBefore: outstanding,
			BalanceAfter:  outstanding - charge.Amount,
			Description:   fmt.Sprintf("repayment of advanced charge %s", charge.ID),
			Metadata: datatypes.NewJSONType(ledgerdomain.TransactionMetadata{
				BillID: charge.BillID,
			}),
		}
		if err := s.ledger.Append(ctx, tx, entry); err != nil {
			return err
		}

		res := tx.WithContext(ctx).
			Model(&billdomain.Charge{}).
			Where("id = ?", charge.ID).
			Updates(map[string]any{
				"status":     billdomain.ChargeStatusPaid,
				"repaid_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		charge.Status = billdomain.ChargeStatusPaid
		charge.RepaidAt = &now
		charge.UpdatedAt = now
		settled = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settled, nil
}
