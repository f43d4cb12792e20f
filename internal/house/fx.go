package house

import (
	"github.com/splitnest/splitnest/internal/house/domain"
	"github.com/splitnest/splitnest/internal/house/service"
	"github.com/splitnest/splitnest/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("house.service",
	fx.Provide(
		repository.ProvideStore[domain.House],
		repository.ProvideStore[domain.HouseMember],
		service.NewService,
	),
)
