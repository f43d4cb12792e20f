package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	"github.com/splitnest/splitnest/internal/locking"
	"github.com/splitnest/splitnest/internal/notify"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const assessmentLockTTL = 30 * time.Second

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Notifier notify.Notifier
	RiskCfg  *config.RiskConfigHolder
	Locker   *locking.Locker        `optional:"true"`
	Cache    cache.StatusIndexCache `optional:"true"`
	Keyed    *locking.KeyedLock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	notifier notify.Notifier
	riskCfg  *config.RiskConfigHolder
	locker   *locking.Locker
	cache    cache.StatusIndexCache
	keyed    *locking.KeyedLock
}

func NewService(p ServiceParam) riskdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("riskindex.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		notifier: p.Notifier,
		riskCfg:  p.RiskCfg,
		locker:   p.Locker,
		cache:    p.Cache,
		keyed:    p.Keyed,
	}
}

func assessmentLockKey(houseID snowflake.ID) string {
	return fmt.Sprintf("splitnest:hsi:%s", houseID)
}

// ComputeHSI recomputes one house's status index. Two concurrent
// recomputations for the same house would both read the same previous
// score and double-apply smoothing, so the whole computation runs under a
// per-house lock; the writes commit in one transaction.
func (s *Service) ComputeHSI(ctx context.Context, houseID snowflake.ID) (riskdomain.Result, error) {
	unlock := s.keyed.Lock(assessmentLockKey(houseID))
	defer unlock()

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, assessmentLockKey(houseID), assessmentLockTTL)
		if err != nil {
			return riskdomain.Result{}, fmt.Errorf("acquire assessment lock: %w", err)
		}
		if !ok {
			return riskdomain.Result{}, riskdomain.ErrAssessmentInProgress
		}
		defer func() {
			_ = s.locker.Release(ctx, assessmentLockKey(houseID), token)
		}()
	}

	exists, err := s.houseExists(ctx, houseID)
	if err != nil {
		return riskdomain.Result{}, err
	}
	if !exists {
		return riskdomain.Result{}, riskdomain.ErrHouseNotFound
	}

	now := s.clock.Now()
	var result riskdomain.Result

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCurrentIndex(ctx, tx, houseID)
		if err != nil {
			return err
		}

		charges, err := s.loadWindowCharges(ctx, tx, houseID, now)
		if err != nil {
			return err
		}

		risk := assessCurrentRisk(charges, now)
		trend := assessTrend(charges, now)

		riskMult := riskMultiplierFor(risk)
		final := finalMultiplier(riskMult, trend.Factor)
		measured := measuredScore(final)

		previous := measured
		previousBracket := deriveBracket(measured)
		if current != nil {
			previous = current.Score
			previousBracket = current.Bracket
		}

		score := smoothScore(previous, measured)
		bracket := deriveBracket(score)

		details := riskdomain.RiskDetails{
			TotalCharges:            len(charges),
			TotalChargeAmount:       risk.TotalChargeAmount,
			UnpaidChargesCount:      risk.UnpaidChargesCount,
			UnpaidAmount:            risk.UnpaidAmount,
			WeightedUnpaidAmount:    risk.WeightedUnpaidAmount,
			UsersWithUnpaid:         risk.UsersWithUnpaid,
			UsersWithCharges:        risk.UsersWithCharges,
			GroupRiskRatio:          risk.GroupRiskRatio,
			AverageDaysLate:         risk.AverageDaysLate,
			FirstHalfPaymentRate:    trend.FirstHalfPaymentRate,
			SecondHalfPaymentRate:   trend.SecondHalfPaymentRate,
			FirstHalfParticipation:  trend.FirstHalfParticipation,
			SecondHalfParticipation: trend.SecondHalfParticipation,
			TrendSignal:             trend.Signal,
		}

		reason := updatedReason(previous, score, previousBracket, bracket)

		if current == nil {
			current = &riskdomain.HouseStatusIndex{
				ID:        s.genID.Generate(),
				HouseID:   houseID,
				CreatedAt: now,
			}
		}
		current.Score = score
		current.Bracket = bracket
		current.FeeMultiplier = deriveFeeMultiplier(score)
		current.CreditMultiplier = deriveCreditMultiplier(score)
		current.CurrentRiskFactor = risk.RiskFactor
		current.TrendFactor = trend.Factor
		current.RiskMultiplier = final
		current.UnpaidChargesCount = risk.UnpaidChargesCount
		current.UnpaidAmount = risk.UnpaidAmount
		current.LastRiskAssessment = now
		current.RiskDetails = datatypes.NewJSONType(details)
		current.UpdatedReason = reason
		current.UpdatedAt = now

		if err := tx.WithContext(ctx).Save(current).Error; err != nil {
			return fmt.Errorf("persist status index: %w", err)
		}

		snapshot := snapshotTypeFor(now)
		history := &riskdomain.HouseRiskHistory{
			ID:             s.genID.Generate(),
			HouseID:        houseID,
			AssessmentDate: now,
			RiskFactor:     risk.RiskFactor,
			TrendFactor:    trend.Factor,
			Multiplier:     final,
			HSIScore:       score,
			FeeMultiplier:  current.FeeMultiplier,
			SnapshotType:   snapshot,
			Metadata: datatypes.NewJSONType(riskdomain.HistoryMetadata{
				UpdatedReason:      reason,
				UnpaidChargesCount: risk.UnpaidChargesCount,
				UnpaidAmount:       risk.UnpaidAmount,
			}),
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(history).Error; err != nil {
			return fmt.Errorf("persist risk history: %w", err)
		}

		result = riskdomain.Result{
			HouseID:          houseID,
			Score:            score,
			PreviousScore:    previous,
			MeasuredScore:    measured,
			Bracket:          bracket,
			PreviousBracket:  previousBracket,
			FeeMultiplier:    current.FeeMultiplier,
			CreditMultiplier: current.CreditMultiplier,
			RiskFactor:       risk.RiskFactor,
			TrendFactor:      trend.Factor,
			RiskMultiplier:   final,
			SnapshotType:     snapshot,
			UpdatedReason:    reason,
			AssessedAt:       now,
		}
		return nil
	})
	if err != nil {
		return riskdomain.Result{}, err
	}

	if s.cache != nil {
		s.cache.Invalidate(houseID)
	}

	result.WarningIssued = s.maybeWarnHouse(ctx, result)

	s.log.Info("computed house status index",
		zap.String("house_id", houseID.String()),
		zap.Int("score", result.Score),
		zap.Int("bracket", result.Bracket),
		zap.Float64("risk_factor", result.RiskFactor),
		zap.String("snapshot_type", string(result.SnapshotType)),
	)
	return result, nil
}

func (s *Service) Current(ctx context.Context, houseID snowflake.ID) (*riskdomain.HouseStatusIndex, error) {
	if s.cache != nil {
		if row, ok := s.cache.Get(houseID); ok {
			return row, nil
		}
	}

	var row riskdomain.HouseStatusIndex
	err := s.db.WithContext(ctx).Where("house_id = ?", houseID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(houseID, &row)
	}
	return &row, nil
}

func (s *Service) History(ctx context.Context, houseID snowflake.ID, snapshotType riskdomain.SnapshotType, limit int) ([]*riskdomain.HouseRiskHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	stmt := s.db.WithContext(ctx).Where("house_id = ?", houseID)
	if snapshotType != "" {
		stmt = stmt.Where("snapshot_type = ?", snapshotType)
	}
	var rows []*riskdomain.HouseRiskHistory
	err := stmt.Order("assessment_date DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *Service) CleanupOldRiskHistory(ctx context.Context) (int64, error) {
	retention := s.riskCfg.Get().WeeklyRetentionMonths
	cutoff := s.clock.Now().AddDate(0, -retention, 0)

	res := s.db.WithContext(ctx).
		Where("snapshot_type = ? AND created_at < ?", riskdomain.SnapshotTypeWeekly, cutoff).
		Delete(&riskdomain.HouseRiskHistory{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("purged weekly risk history",
			zap.Int64("deleted", res.RowsAffected),
			zap.Time("cutoff", cutoff),
		)
	}
	return res.RowsAffected, nil
}

func (s *Service) houseExists(ctx context.Context, houseID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM houses WHERE id = ?`, houseID,
	).Scan(&count).Error
	return count > 0, err
}

func (s *Service) lockCurrentIndex(ctx context.Context, tx *gorm.DB, houseID snowflake.ID) (*riskdomain.HouseStatusIndex, error) {
	var row riskdomain.HouseStatusIndex
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM house_status_indices WHERE house_id = ? FOR UPDATE`,
		houseID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (s *Service) loadWindowCharges(ctx context.Context, tx *gorm.DB, houseID snowflake.ID, now time.Time) ([]chargeObservation, error) {
	windowStart := now.AddDate(0, 0, -lookbackDays)

	var rows []struct {
		UserID  snowflake.ID
		Amount  int64
		Status  billdomain.ChargeStatus
		DueDate time.Time
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT user_id, amount, status, due_date
		 FROM charges
		 WHERE house_id = ? AND due_date >= ? AND due_date <= ?
		 ORDER BY due_date ASC`,
		houseID,
		windowStart,
		now,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	charges := make([]chargeObservation, 0, len(rows))
	for _, r := range rows {
		charges = append(charges, chargeObservation{
			UserID:  r.UserID,
			Amount:  r.Amount,
			Paid:    r.Status == billdomain.ChargeStatusPaid,
			DueDate: r.DueDate,
		})
	}
	return charges, nil
}

func updatedReason(previousScore, score, previousBracket, bracket int) string {
	switch {
	case bracket != previousBracket:
		return fmt.Sprintf("risk assessment: score %d -> %d (bracket %d -> %d)", previousScore, score, previousBracket, bracket)
	case score != previousScore:
		return fmt.Sprintf("score drift: %d -> %d", previousScore, score)
	default:
		return "routine reassessment"
	}
}

// maybeWarnHouse sends a group-framed warning when the bracket dropped or
// the score hugs the bracket floor. Delivery failures are logged, never
// propagated: the score is already committed.
func (s *Service) maybeWarnHouse(ctx context.Context, result riskdomain.Result) bool {
	nearFloor := result.Score-result.Bracket*10 <= 3
	if result.Bracket >= result.PreviousBracket && !nearFloor {
		return false
	}

	message := fmt.Sprintf(
		"Your house's payment health score is %d. Settling open charges together keeps everyone's advance allowance available.",
		result.Score,
	)
	if err := s.notifier.NotifyHouse(ctx, result.HouseID, message); err != nil {
		s.log.Warn("failed to deliver house warning",
			zap.String("house_id", result.HouseID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}
