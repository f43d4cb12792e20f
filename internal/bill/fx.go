package bill

import (
	"github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/bill/service"
	"github.com/splitnest/splitnest/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(
		repository.ProvideStore[domain.Bill],
		repository.ProvideStore[domain.Charge],
		service.NewService,
	),
)
