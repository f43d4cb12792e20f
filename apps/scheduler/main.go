package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/splitnest/splitnest/internal/advance"
	"github.com/splitnest/splitnest/internal/bill"
	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	"github.com/splitnest/splitnest/internal/house"
	"github.com/splitnest/splitnest/internal/ledger"
	"github.com/splitnest/splitnest/internal/locking"
	"github.com/splitnest/splitnest/internal/logger"
	"github.com/splitnest/splitnest/internal/migration"
	"github.com/splitnest/splitnest/internal/notify"
	"github.com/splitnest/splitnest/internal/observability"
	"github.com/splitnest/splitnest/internal/riskindex"
	"github.com/splitnest/splitnest/internal/scheduler"
	"github.com/splitnest/splitnest/pkg/db"
	"go.uber.org/fx"
)

// Headless worker: runs the risk scheduler without the HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locking.Module,
		notify.Module,
		cache.Module,

		// Domain services required by the scheduler
		house.Module,
		bill.Module,
		ledger.Module,
		riskindex.Module,
		advance.Module,

		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
