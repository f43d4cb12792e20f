package advance

import (
	"github.com/splitnest/splitnest/internal/advance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("advance.service",
	fx.Provide(service.NewService),
)
