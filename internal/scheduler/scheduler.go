// Package scheduler drives periodic risk recomputation and retention cleanup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	obsmetrics "github.com/splitnest/splitnest/internal/observability/metrics"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	RiskSvc riskdomain.Service
	Clock   clock.Clock
	RiskCfg *config.RiskConfigHolder
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	riskSvc riskdomain.Service
	clock   clock.Clock
	riskCfg *config.RiskConfigHolder

	lastCleanup time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.RiskSvc == nil || p.Clock == nil || p.RiskCfg == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		riskSvc: p.RiskSvc,
		clock:   p.Clock,
		riskCfg: p.RiskCfg,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	riskMetrics := obsmetrics.Risk()
	riskMetrics.IncJobRun(name)

	err := fn(ctx)
	riskMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	riskMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	err = errors.Join(err, s.runJob(parent, "risk_run", 5*time.Minute, s.RiskRunJob))
	err = errors.Join(err, s.runJob(parent, "history_cleanup", 2*time.Minute, s.HistoryCleanupJob))

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.riskCfg.Get().RunInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(interval)
	riskMetrics := obsmetrics.Risk()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			riskMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		// Pick up hot-reloaded intervals between runs.
		if next := s.riskCfg.Get().RunInterval; next != interval {
			interval = next
			ticker.Reset(interval)
		}
		nextRun = nextRun.Add(interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RiskRunJob recomputes every house whose index is missing or older than
// the assessment interval. Houses are processed one at a time with a small
// delay so a big backlog does not monopolize the database.
func (s *Scheduler) RiskRunJob(ctx context.Context) error {
	cfg := s.riskCfg.Get()
	cutoff := s.clock.Now().Add(-cfg.AssessmentInterval)

	houseIDs, err := s.staleHouses(ctx, cutoff, cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(houseIDs) == 0 {
		return nil
	}

	riskMetrics := obsmetrics.Risk()
	var errs error
	for i, houseID := range houseIDs {
		if i > 0 && cfg.InterHouseDelay > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(errs, ctx.Err())
			case <-time.After(cfg.InterHouseDelay):
			}
		}

		result, err := s.riskSvc.ComputeHSI(ctx, houseID)
		if err != nil {
			if errors.Is(err, riskdomain.ErrAssessmentInProgress) {
				// Another worker holds the house; it will be stale
				// again next tick if that run fails.
				continue
			}
			s.log.Warn("house recomputation failed",
				zap.String("house_id", houseID.String()),
				zap.Error(err),
			)
			errs = errors.Join(errs, fmt.Errorf("house %s: %w", houseID, err))
			continue
		}

		riskMetrics.IncHouseScored(result.Score)
		if result.WarningIssued {
			riskMetrics.IncWarningIssued()
		}
	}
	return errs
}

func (s *Scheduler) staleHouses(ctx context.Context, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT h.id
		 FROM houses h
		 LEFT JOIN house_status_indices hsi ON hsi.house_id = h.id
		 WHERE hsi.id IS NULL OR hsi.last_risk_assessment < ?
		 ORDER BY h.id ASC
		 LIMIT ?`,
		cutoff, limit,
	).Scan(&ids).Error
	return ids, err
}

// HistoryCleanupJob purges expired weekly snapshots. The purge itself is
// idempotent, so the once-per-interval gate only avoids pointless scans.
func (s *Scheduler) HistoryCleanupJob(ctx context.Context) error {
	cfg := s.riskCfg.Get()
	now := s.clock.Now()
	if !s.lastCleanup.IsZero() && now.Sub(s.lastCleanup) < cfg.CleanupInterval {
		return nil
	}

	deleted, err := s.riskSvc.CleanupOldRiskHistory(ctx)
	if err != nil {
		return err
	}
	s.lastCleanup = now
	obsmetrics.Risk().AddHistoryPurged(deleted)
	return nil
}
