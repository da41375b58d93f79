package billingsync

import (
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/billingsync/repository"
	"github.com/saasykit/atlas/internal/billingsync/service"
	"github.com/saasykit/atlas/internal/billingsync/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("billingsync",
	fx.Provide(
		repository.Provide,
		service.NewService,
		worker.New,
	),
	fx.Provide(func(svc billingsyncdomain.Service) billingsyncdomain.Dispatcher { return svc }),
	fx.Invoke(worker.Register),
)
