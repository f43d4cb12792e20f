package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLedgerTestSvc(t *testing.T) (*gorm.DB, ledgerdomain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&ledgerdomain.Transaction{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return db, svc, node
}

func TestAppend(t *testing.T) {
	_, svc, node := newLedgerTestSvc(t)
	ctx := context.Background()
	houseID := node.Generate()

	entry := &ledgerdomain.Transaction{
		HouseID:       houseID,
		Type:          ledgerdomain.TransactionTypeAdvance,
		Amount:        4000,
		BalanceBefore: 0,
		BalanceAfter:  4000,
	}
	require.NoError(t, svc.Append(ctx, nil, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	err := svc.Append(ctx, nil, &ledgerdomain.Transaction{
		HouseID: houseID,
		Type:    ledgerdomain.TransactionTypeAdvance,
		Amount:  0,
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestTotalsAndOutstanding(t *testing.T) {
	_, svc, node := newLedgerTestSvc(t)
	ctx := context.Background()
	houseID := node.Generate()
	otherHouse := node.Generate()

	entries := []struct {
		house  snowflake.ID
		kind   ledgerdomain.TransactionType
		amount int64
	}{
		{houseID, ledgerdomain.TransactionTypeAdvance, 4000},
		{houseID, ledgerdomain.TransactionTypeAdvance, 5000},
		{houseID, ledgerdomain.TransactionTypeAdvanceRepayment, 4000},
		{houseID, ledgerdomain.TransactionTypeCreditUsage, 1000},
		{otherHouse, ledgerdomain.TransactionTypeAdvance, 7000},
	}
	for _, e := range entries {
		require.NoError(t, svc.Append(ctx, nil, &ledgerdomain.Transaction{
			HouseID: e.house,
			Type:    e.kind,
			Amount:  e.amount,
		}))
	}

	totals, err := svc.Totals(ctx, nil, houseID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), totals.Advanced)
	assert.Equal(t, int64(4000), totals.Repaid)
	assert.Equal(t, int64(1000), totals.CreditUsage)
	assert.Equal(t, int64(6000), totals.Outstanding())
}

func TestRecordAdjustment(t *testing.T) {
	_, svc, node := newLedgerTestSvc(t)
	ctx := context.Background()
	houseID := node.Generate()

	require.NoError(t, svc.Append(ctx, nil, &ledgerdomain.Transaction{
		HouseID: houseID,
		Type:    ledgerdomain.TransactionTypeAdvance,
		Amount:  4000,
	}))

	entry, err := svc.RecordAdjustment(ctx, houseID, 500, "reconciliation 2025-03")
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TransactionTypeAdjustment, entry.Type)
	// Adjustments annotate the ledger without shifting the advance
	// balance.
	assert.Equal(t, int64(4000), entry.BalanceBefore)
	assert.Equal(t, int64(4000), entry.BalanceAfter)
	assert.Equal(t, "reconciliation 2025-03", entry.Metadata.Data().Reason)

	_, err = svc.RecordAdjustment(ctx, houseID, 0, "reason")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.RecordAdjustment(ctx, houseID, 500, "   ")
	assert.ErrorIs(t, err, ledgerdomain.ErrEmptyReason)
}

func TestList_NewestFirst(t *testing.T) {
	db, svc, node := newLedgerTestSvc(t)
	ctx := context.Background()
	houseID := node.Generate()

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&ledgerdomain.Transaction{
			ID:        node.Generate(),
			HouseID:   houseID,
			Type:      ledgerdomain.TransactionTypeAdvance,
			Amount:    int64(1000 * (i + 1)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	entries, err := svc.List(ctx, houseID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3000), entries[0].Amount)
	assert.Equal(t, int64(1000), entries[2].Amount)

	limited, err := svc.List(ctx, houseID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
