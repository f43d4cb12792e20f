package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/clock"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	houseservice "github.com/splitnest/splitnest/internal/house/service"
	"github.com/splitnest/splitnest/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type billTestEnv struct {
	db       *gorm.DB
	svc      domain.Service
	houseSvc housedomain.Service
	clock    *clock.FakeClock
	node     *snowflake.Node
}

func newBillTestEnv(t *testing.T) *billTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_for_update", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_strip_for_update_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&housedomain.House{},
		&housedomain.HouseMember{},
		&domain.Bill{},
		&domain.Charge{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	houseSvc := houseservice.NewService(houseservice.ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		HouseRepo:  repository.ProvideStore[housedomain.House](db),
		MemberRepo: repository.ProvideStore[housedomain.HouseMember](db),
	})

	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		HouseSvc:   houseSvc,
		BillRepo:   repository.ProvideStore[domain.Bill](db),
		ChargeRepo: repository.ProvideStore[domain.Charge](db),
	})

	return &billTestEnv{db: db, svc: svc, houseSvc: houseSvc, clock: fc, node: node}
}

func (e *billTestEnv) createHouse(t *testing.T, memberCount int) (snowflake.ID, []snowflake.ID) {
	t.Helper()
	userIDs := make([]snowflake.ID, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		userIDs = append(userIDs, e.node.Generate())
	}
	house, err := e.houseSvc.Create(context.Background(), "test house", userIDs)
	require.NoError(t, err)
	return house.ID, userIDs
}

func TestCreateBill_EqualSplitWithRemainder(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, userIDs := env.createHouse(t, 3)
	due := env.clock.Now().AddDate(0, 0, 7)

	bill, charges, err := env.svc.Create(context.Background(), domain.CreateBillRequest{
		HouseID:     houseID,
		Description: "internet",
		TotalAmount: 10000,
		DueDate:     due,
	})
	require.NoError(t, err)
	require.Len(t, charges, 3)

	var sum int64
	amounts := map[snowflake.ID]int64{}
	for _, c := range charges {
		sum += c.Amount
		amounts[c.UserID] = c.Amount
		assert.Equal(t, bill.ID, c.BillID)
		assert.Equal(t, domain.ChargeStatusUnpaid, c.Status)
	}
	assert.Equal(t, int64(10000), sum)
	// 10000 over three members: spare cent goes to the earliest joiner.
	assert.Equal(t, int64(3334), amounts[userIDs[0]])
	assert.Equal(t, int64(3333), amounts[userIDs[1]])
	assert.Equal(t, int64(3333), amounts[userIDs[2]])
}

func TestCreateBill_ExplicitShares(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, userIDs := env.createHouse(t, 2)
	due := env.clock.Now().AddDate(0, 0, 7)

	_, charges, err := env.svc.Create(context.Background(), domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 9000,
		DueDate:     due,
		Shares: []domain.Share{
			{UserID: userIDs[0], Amount: 6000},
			{UserID: userIDs[1], Amount: 3000},
		},
	})
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, int64(6000), charges[0].Amount)
}

func TestCreateBill_Validation(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, userIDs := env.createHouse(t, 2)
	due := env.clock.Now().AddDate(0, 0, 7)

	_, _, err := env.svc.Create(context.Background(), domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 0,
		DueDate:     due,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Shares must cover the total exactly.
	_, _, err = env.svc.Create(context.Background(), domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 9000,
		DueDate:     due,
		Shares: []domain.Share{
			{UserID: userIDs[0], Amount: 6000},
			{UserID: userIDs[1], Amount: 2000},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSplit)

	_, _, err = env.svc.Create(context.Background(), domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 9000,
		DueDate:     due,
		Shares: []domain.Share{
			{UserID: userIDs[0], Amount: 9000},
			{UserID: userIDs[1], Amount: 0},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSplit)
}

func TestMarkChargePaid(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, _ := env.createHouse(t, 2)
	due := env.clock.Now().AddDate(0, 0, 7)
	ctx := context.Background()

	_, charges, err := env.svc.Create(ctx, domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 8000,
		DueDate:     due,
	})
	require.NoError(t, err)

	paid, err := env.svc.MarkChargePaid(ctx, charges[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusPaid, paid.Status)

	_, err = env.svc.MarkChargePaid(ctx, charges[0].ID)
	assert.ErrorIs(t, err, domain.ErrChargeAlreadyPaid)

	_, err = env.svc.MarkChargePaid(ctx, env.node.Generate())
	assert.ErrorIs(t, err, domain.ErrChargeNotFound)
}

func TestMarkChargePaid_RejectsAdvancedCharge(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, _ := env.createHouse(t, 2)
	due := env.clock.Now().AddDate(0, 0, 7)
	ctx := context.Background()

	_, charges, err := env.svc.Create(ctx, domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 8000,
		DueDate:     due,
	})
	require.NoError(t, err)

	// Advanced charges settle through the advance flow, which records the
	// repayment in the ledger.
	require.NoError(t, env.db.Model(&domain.Charge{}).
		Where("id = ?", charges[0].ID).
		Update("advanced", true).Error)

	_, err = env.svc.MarkChargePaid(ctx, charges[0].ID)
	assert.ErrorIs(t, err, domain.ErrChargeAdvanced)
}

func TestUnpaidCharges_OrderedByDueDate(t *testing.T) {
	env := newBillTestEnv(t)
	houseID, _ := env.createHouse(t, 2)
	ctx := context.Background()

	later := env.clock.Now().AddDate(0, 0, 14)
	sooner := env.clock.Now().AddDate(0, 0, 7)

	_, _, err := env.svc.Create(ctx, domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 4000,
		DueDate:     later,
	})
	require.NoError(t, err)
	_, _, err = env.svc.Create(ctx, domain.CreateBillRequest{
		HouseID:     houseID,
		TotalAmount: 6000,
		DueDate:     sooner,
	})
	require.NoError(t, err)

	unpaid, err := env.svc.UnpaidCharges(ctx, houseID)
	require.NoError(t, err)
	require.Len(t, unpaid, 4)
	assert.Equal(t, sooner.Unix(), unpaid[0].DueDate.Unix())
	assert.Equal(t, later.Unix(), unpaid[3].DueDate.Unix())
}
