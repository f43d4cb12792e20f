package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/clock"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	"github.com/splitnest/splitnest/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	HouseSvc   housedomain.Service
	BillRepo   repository.Repository[domain.Bill]
	ChargeRepo repository.Repository[domain.Charge]
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	houseSvc   housedomain.Service
	billRepo   repository.Repository[domain.Bill]
	chargeRepo repository.Repository[domain.Charge]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bill.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		houseSvc:   p.HouseSvc,
		billRepo:   p.BillRepo,
		chargeRepo: p.ChargeRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBillRequest) (*domain.Bill, []*domain.Charge, error) {
	if req.TotalAmount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	shares := req.Shares
	if len(shares) == 0 {
		members, err := s.houseSvc.Members(ctx, req.HouseID)
		if err != nil {
			return nil, nil, err
		}
		if len(members) == 0 {
			return nil, nil, housedomain.ErrNoMembers
		}
		shares = equalSplit(req.TotalAmount, members)
	} else {
		var sum int64
		for _, share := range shares {
			if share.Amount <= 0 {
				return nil, nil, domain.ErrInvalidSplit
			}
			sum += share.Amount
		}
		if sum != req.TotalAmount {
			return nil, nil, domain.ErrInvalidSplit
		}
	}

	now := s.clock.Now()
	bill := &domain.Bill{
		ID:          s.genID.Generate(),
		HouseID:     req.HouseID,
		Description: req.Description,
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	charges := make([]*domain.Charge, 0, len(shares))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.billRepo.WithTrx(tx).Create(ctx, bill); err != nil {
			return err
		}
		chargeStore := s.chargeRepo.WithTrx(tx)
		for _, share := range shares {
			charge := &domain.Charge{
				ID:        s.genID.Generate(),
				BillID:    bill.ID,
				HouseID:   req.HouseID,
				UserID:    share.UserID,
				Amount:    share.Amount,
				Status:    domain.ChargeStatusUnpaid,
				DueDate:   req.DueDate,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := chargeStore.Create(ctx, charge); err != nil {
				return err
			}
			charges = append(charges, charge)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("bill created",
		zap.String("bill_id", bill.ID.String()),
		zap.String("house_id", req.HouseID.String()),
		zap.Int64("total_amount", req.TotalAmount),
		zap.Int("charges", len(charges)),
	)
	return bill, charges, nil
}

// equalSplit divides cents across members, spare cents to earliest joiners.
func equalSplit(total int64, members []*housedomain.HouseMember) []domain.Share {
	n := int64(len(members))
	per := total / n
	remainder := total % n

	shares := make([]domain.Share, 0, len(members))
	for i, member := range members {
		amount := per
		if int64(i) < remainder {
			amount++
		}
		shares = append(shares, domain.Share{UserID: member.UserID, Amount: amount})
	}
	return shares
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Bill, error) {
	bill, err := s.billRepo.FindOne(ctx, &domain.Bill{ID: id})
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrNotFound
	}
	return bill, nil
}

func (s *Service) Charges(ctx context.Context, billID snowflake.ID) ([]*domain.Charge, error) {
	return s.chargeRepo.Find(ctx, &domain.Charge{BillID: billID},
		repository.WithOrderBy("id ASC"),
	)
}

func (s *Service) MarkChargePaid(ctx context.Context, chargeID snowflake.ID) (*domain.Charge, error) {
	now := s.clock.Now()
	var paid domain.Charge

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var charge domain.Charge
		err := tx.WithContext(ctx).Raw(
			`SELECT * FROM charges WHERE id = ? FOR UPDATE`, chargeID,
		).Scan(&charge).Error
		if err != nil {
			return err
		}
		if charge.ID == 0 {
			return domain.ErrChargeNotFound
		}
		if charge.Advanced {
			return domain.ErrChargeAdvanced
		}
		if charge.Status == domain.ChargeStatusPaid {
			return domain.ErrChargeAlreadyPaid
		}

		res := tx.WithContext(ctx).
			Model(&domain.Charge{}).
			Where("id = ?", charge.ID).
			Updates(map[string]any{
				"status":     domain.ChargeStatusPaid,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		charge.Status = domain.ChargeStatusPaid
		charge.UpdatedAt = now
		paid = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &paid, nil
}

func (s *Service) UnpaidCharges(ctx context.Context, houseID snowflake.ID) ([]*domain.Charge, error) {
	return s.chargeRepo.Find(ctx,
		&domain.Charge{HouseID: houseID, Status: domain.ChargeStatusUnpaid},
		repository.WithOrderBy("due_date ASC, id ASC"),
	)
}
