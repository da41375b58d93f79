package appevent

import (
	"github.com/saasykit/atlas/internal/appevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("appevent.recorder",
	fx.Provide(service.NewRecorder),
)
