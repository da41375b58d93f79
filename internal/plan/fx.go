package plan

import (
	"github.com/saasykit/atlas/internal/plan/repository"
	"github.com/saasykit/atlas/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
