package invitation

import (
	"github.com/saasykit/atlas/internal/invitation/repository"
	"github.com/saasykit/atlas/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
