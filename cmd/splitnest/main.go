package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/clock"
	"github.com/splitnest/splitnest/internal/config"
	"github.com/splitnest/splitnest/internal/locking"
	"github.com/splitnest/splitnest/internal/logger"
	"github.com/splitnest/splitnest/internal/migration"
	"github.com/splitnest/splitnest/internal/notify"
	"github.com/splitnest/splitnest/internal/observability"
	"github.com/splitnest/splitnest/internal/ratelimit"
	"github.com/splitnest/splitnest/internal/scheduler"
	"github.com/splitnest/splitnest/internal/server"
	"github.com/splitnest/splitnest/pkg/db"
	"github.com/splitnest/splitnest/pkg/telemetry"
	"go.uber.org/fx"
)

// The monolith: HTTP API, background scheduler and migrations in one
// process.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locking.Module,
		notify.Module,
		cache.Module,
		ratelimit.Module,

		server.Module,
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
