package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/house/domain"
	"github.com/splitnest/splitnest/pkg/db"
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
	HouseRepo  repository.Repository[domain.House]
	MemberRepo repository.Repository[domain.HouseMember]
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	houseRepo  repository.Repository[domain.House]
	memberRepo repository.Repository[domain.HouseMember]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("house.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		houseRepo:  p.HouseRepo,
		memberRepo: p.MemberRepo,
	}
}

func (s *Service) Create(ctx context.Context, name string, memberUserIDs []snowflake.ID) (*domain.House, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if len(memberUserIDs) == 0 {
		return nil, domain.ErrNoMembers
	}

	now := s.clock.Now()
	house := &domain.House{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.houseRepo.WithTrx(tx).Create(ctx, house); err != nil {
			return err
		}
		members := s.memberRepo.WithTrx(tx)
		for _, userID := range memberUserIDs {
			member := &domain.HouseMember{
				ID:       s.genID.Generate(),
				HouseID:  house.ID,
				UserID:   userID,
				JoinedAt: now,
			}
			if err := members.Create(ctx, member); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrMemberExists
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("house created",
		zap.String("house_id", house.ID.String()),
		zap.Int("members", len(memberUserIDs)),
	)
	return house, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.House, error) {
	house, err := s.houseRepo.FindOne(ctx, &domain.House{ID: id})
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, domain.ErrNotFound
	}
	return house, nil
}

func (s *Service) AddMember(ctx context.Context, houseID, userID snowflake.ID) (*domain.HouseMember, error) {
	if _, err := s.Get(ctx, houseID); err != nil {
		return nil, err
	}

	member := &domain.HouseMember{
		ID:       s.genID.Generate(),
		HouseID:  houseID,
		UserID:   userID,
		JoinedAt: s.clock.Now(),
	}
	if err := s.memberRepo.Create(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrMemberExists
		}
		return nil, err
	}
	return member, nil
}

func (s *Service) Members(ctx context.Context, houseID snowflake.ID) ([]*domain.HouseMember, error) {
	return s.memberRepo.Find(ctx, &domain.HouseMember{HouseID: houseID},
		repository.WithOrderBy("joined_at ASC, id ASC"),
	)
}

func (s *Service) List(ctx context.Context, limit int) ([]*domain.House, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.houseRepo.Find(ctx, &domain.House{},
		repository.WithOrderBy("created_at DESC"),
		repository.WithLimit(limit),
	)
}
