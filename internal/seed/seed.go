// Package seed bootstraps a demo house for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	"gorm.io/gorm"
)

const demoHouseName = "Demo House"

// EnsureDemoHouse creates a demo house with three members and a few weeks
// of bill history so the risk engine has something to score. Idempotent by
// house name.
func EnsureDemoHouse(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var house housedomain.House
		err := tx.WithContext(ctx).Where("name = ?", demoHouseName).First(&house).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		house = housedomain.House{
			ID:        node.Generate(),
			Name:      demoHouseName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&house).Error; err != nil {
			return err
		}

		members := make([]snowflake.ID, 0, 3)
		for i := 0; i < 3; i++ {
			userID := node.Generate()
			members = append(members, userID)
			member := housedomain.HouseMember{
				ID:       node.Generate(),
				HouseID:  house.ID,
				UserID:   userID,
				JoinedAt: now.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.WithContext(ctx).Create(&member).Error; err != nil {
				return err
			}
		}

		// Four weekly bills: the oldest three fully paid on time, the
		// newest still open so advances have something to front.
		for week := 4; week >= 1; week-- {
			due := now.AddDate(0, 0, -7*week)
			if err := seedBill(ctx, tx, node, house.ID, members, due, week > 1); err != nil {
				return err
			}
		}

		return nil
	})
}

func seedBill(ctx context.Context, tx *gorm.DB, node *snowflake.Node, houseID snowflake.ID, members []snowflake.ID, due time.Time, paid bool) error {
	const shareCents = 3000

	bill := billdomain.Bill{
		ID:          node.Generate(),
		HouseID:     houseID,
		Description: "Utilities",
		TotalAmount: shareCents * int64(len(members)),
		DueDate:     due,
		CreatedAt:   due.AddDate(0, 0, -7),
		UpdatedAt:   due,
	}
	if err := tx.WithContext(ctx).Create(&bill).Error; err != nil {
		return err
	}

	for _, userID := range members {
		charge := billdomain.Charge{
			ID:        node.Generate(),
			BillID:    bill.ID,
			HouseID:   houseID,
			UserID:    userID,
			Amount:    shareCents,
			Status:    billdomain.ChargeStatusUnpaid,
			DueDate:   due,
			CreatedAt: bill.CreatedAt,
			UpdatedAt: bill.CreatedAt,
		}
		if paid {
			charge.Status = billdomain.ChargeStatusPaid
			charge.UpdatedAt = due.AddDate(0, 0, -1)
		}
		if err := tx.WithContext(ctx).Create(&charge).Error; err != nil {
			return err
		}
	}

	return nil
}
