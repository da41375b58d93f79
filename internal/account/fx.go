package account

import (
	"github.com/saasykit/atlas/internal/account/repository"
	"github.com/saasykit/atlas/internal/account/resolver"
	"github.com/saasykit/atlas/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(
		repository.Provide,
		service.NewService,
		resolver.New,
	),
)
