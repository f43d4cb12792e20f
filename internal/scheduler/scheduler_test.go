package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRiskSvc struct {
	computed     []snowflake.ID
	computeErr   map[snowflake.ID]error
	cleanupCalls int
}

func (f *fakeRiskSvc) ComputeHSI(ctx context.Context, houseID snowflake.ID) (riskdomain.Result, error) {
	if err := f.computeErr[houseID]; err != nil {
		return riskdomain.Result{}, err
	}
	f.computed = append(f.computed, houseID)
	return riskdomain.Result{HouseID: houseID, Score: 50, Bracket: 5}, nil
}

func (f *fakeRiskSvc) Current(ctx context.Context, houseID snowflake.ID) (*riskdomain.HouseStatusIndex, error) {
	return nil, nil
}

func (f *fakeRiskSvc) History(ctx context.Context, houseID snowflake.ID, snapshotType riskdomain.SnapshotType, limit int) ([]*riskdomain.HouseRiskHistory, error) {
	return nil, nil
}

func (f *fakeRiskSvc) CleanupOldRiskHistory(ctx context.Context) (int64, error) {
	f.cleanupCalls++
	return 0, nil
}

type schedulerTestEnv struct {
	db    *gorm.DB
	sched *Scheduler
	risk  *fakeRiskSvc
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newSchedulerTestEnv(t *testing.T, cfg config.RiskConfig) *schedulerTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&housedomain.House{},
		&riskdomain.HouseStatusIndex{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	risk := &fakeRiskSvc{computeErr: map[snowflake.ID]error{}}

	sched, err := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		RiskSvc: risk,
		Clock:   fc,
		RiskCfg: config.NewStaticRiskConfigHolder(cfg),
	})
	require.NoError(t, err)

	return &schedulerTestEnv{db: db, sched: sched, risk: risk, clock: fc, node: node}
}

func fastRiskConfig() config.RiskConfig {
	cfg := config.DefaultRiskConfig()
	cfg.InterHouseDelay = 0
	return cfg
}

func (e *schedulerTestEnv) createHouse(t *testing.T) snowflake.ID {
	t.Helper()
	house := &housedomain.House{
		ID:        e.node.Generate(),
		Name:      "test house",
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}
	require.NoError(t, e.db.Create(house).Error)
	return house.ID
}

func (e *schedulerTestEnv) createIndex(t *testing.T, houseID snowflake.ID, assessedAt time.Time) {
	t.Helper()
	require.NoError(t, e.db.Create(&riskdomain.HouseStatusIndex{
		ID:                 e.node.Generate(),
		HouseID:            houseID,
		Score:              50,
		Bracket:            5,
		FeeMultiplier:      1,
		CreditMultiplier:   1,
		TrendFactor:        1,
		RiskMultiplier:     1,
		LastRiskAssessment: assessedAt,
		CreatedAt:          assessedAt,
		UpdatedAt:          assessedAt,
	}).Error)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRiskRunJob_SelectsStaleHouses(t *testing.T) {
	env := newSchedulerTestEnv(t, fastRiskConfig())

	neverScored := env.createHouse(t)
	stale := env.createHouse(t)
	env.createIndex(t, stale, env.clock.Now().AddDate(0, 0, -8))
	fresh := env.createHouse(t)
	env.createIndex(t, fresh, env.clock.Now().Add(-time.Hour))

	require.NoError(t, env.sched.RunOnce(context.Background()))

	assert.ElementsMatch(t, []snowflake.ID{neverScored, stale}, env.risk.computed)
}

func TestRiskRunJob_RespectsBatchSize(t *testing.T) {
	cfg := fastRiskConfig()
	cfg.BatchSize = 1
	env := newSchedulerTestEnv(t, cfg)

	env.createHouse(t)
	env.createHouse(t)

	require.NoError(t, env.sched.RiskRunJob(context.Background()))
	assert.Len(t, env.risk.computed, 1)
}

func TestRiskRunJob_SkipsInProgressHouses(t *testing.T) {
	env := newSchedulerTestEnv(t, fastRiskConfig())

	busy := env.createHouse(t)
	idle := env.createHouse(t)
	env.risk.computeErr[busy] = riskdomain.ErrAssessmentInProgress

	require.NoError(t, env.sched.RiskRunJob(context.Background()))
	assert.Equal(t, []snowflake.ID{idle}, env.risk.computed)
}

func TestRiskRunJob_CollectsFailures(t *testing.T) {
	env := newSchedulerTestEnv(t, fastRiskConfig())

	broken := env.createHouse(t)
	fine := env.createHouse(t)
	env.risk.computeErr[broken] = errors.New("boom")

	err := env.sched.RiskRunJob(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.String())
	// One failing house must not block the rest of the batch.
	assert.Equal(t, []snowflake.ID{fine}, env.risk.computed)
}

func TestHistoryCleanupJob_GatedByInterval(t *testing.T) {
	env := newSchedulerTestEnv(t, fastRiskConfig())

	require.NoError(t, env.sched.RunOnce(context.Background()))
	require.NoError(t, env.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, env.risk.cleanupCalls)

	env.clock.Advance(25 * time.Hour)
	require.NoError(t, env.sched.RunOnce(context.Background()))
	assert.Equal(t, 2, env.risk.cleanupCalls)
}
