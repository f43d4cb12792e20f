package migration

import (
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/config"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"github.com/splitnest/splitnest/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// SQL migrations target postgres; other dialects (local
			// sqlite, mysql) rely on the model definitions instead.
			if err := conn.AutoMigrate(
				&housedomain.House{},
				&housedomain.HouseMember{},
				&billdomain.Bill{},
				&billdomain.Charge{},
				&ledgerdomain.Transaction{},
				&riskdomain.HouseStatusIndex{},
				&riskdomain.HouseRiskHistory{},
			); err != nil {
				return err
			}
		}

		if cfg.Environment == "development" {
			return seed.EnsureDemoHouse(conn)
		}
		return nil
	}),
)
