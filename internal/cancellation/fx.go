package cancellation

import (
	"github.com/saasykit/atlas/internal/cancellation/repository"
	"github.com/saasykit/atlas/internal/cancellation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cancellation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
