package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry *ledgerdomain.Transaction) error {
	if entry.Amount <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if tx == nil {
		tx = s.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

type typeTotalRow struct {
	Type  ledgerdomain.TransactionType
	Total int64
}

func (s *Service) Totals(ctx context.Context, tx *gorm.DB, houseID snowflake.ID) (ledgerdomain.TypeTotals, error) {
	if tx == nil {
		tx = s.db
	}

	var rows []typeTotalRow
	err := tx.WithContext(ctx).Raw(
		`SELECT type, COALESCE(SUM(amount), 0) AS total
		 FROM transactions
		 WHERE house_id = ?
		 GROUP BY type`,
		houseID,
	).Scan(&rows).Error
	if err != nil {
		return ledgerdomain.TypeTotals{}, err
	}

	var totals ledgerdomain.TypeTotals
	for _, row := range rows {
		switch row.Type {
		case ledgerdomain.TransactionTypeAdvance:
			totals.Advanced = row.Total
		case ledgerdomain.TransactionTypeAdvanceRepayment:
			totals.Repaid = row.Total
		case ledgerdomain.TransactionTypeCreditUsage:
			totals.CreditUsage = row.Total
		case ledgerdomain.TransactionTypeAdjustment:
			totals.Adjustments = row.Total
		}
	}
	return totals, nil
}

func (s *Service) RecordAdjustment(ctx context.Context, houseID snowflake.ID, amount int64, reason string) (*ledgerdomain.Transaction, error) {
	if amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ledgerdomain.ErrEmptyReason
	}

	var entry *ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		totals, err := s.Totals(ctx, tx, houseID)
		if err != nil {
			return err
		}
		before := totals.Outstanding()
		entry = &ledgerdomain.Transaction{
			ID:            s.genID.Generate(),
			HouseID:       houseID,
			Type:          ledgerdomain.TransactionTypeAdjustment,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  before,
			Description:   "manual ledger adjustment",
			Metadata:      datatypes.NewJSONType(ledgerdomain.TransactionMetadata{Reason: reason}),
			CreatedAt:     time.Now().UTC(),
		}
		return tx.WithContext(ctx).Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recorded ledger adjustment",
		zap.String("house_id", houseID.String()),
		zap.Int64("amount", amount),
	)
	return entry, nil
}

func (s *Service) List(ctx context.Context, houseID snowflake.ID, limit int) ([]*ledgerdomain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []*ledgerdomain.Transaction
	err := s.db.WithContext(ctx).
		Where("house_id = ?", houseID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
