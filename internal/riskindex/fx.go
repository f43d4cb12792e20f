package riskindex

import (
	"github.com/splitnest/splitnest/internal/riskindex/service"
	"go.uber.org/fx"
)

var Module = fx.Module("riskindex.service",
	fx.Provide(service.NewService),
)
