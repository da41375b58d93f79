package gateway

import (
	"fmt"

	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
}

// New selects the provider adapter from configuration. The fake
// provider keeps local and CI environments off the network.
func New(p Params) (Gateway, error) {
	switch p.Config.Gateway.Provider {
	case "", "fake":
		fake := NewFake()
		fake.NowFunc = p.Clock.Now
		return fake, nil
	case "http":
		return newHTTPGateway(p.Config.Gateway, p.Log), nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", p.Config.Gateway.Provider)
	}
}

var Module = fx.Module("gateway",
	fx.Provide(New),
)
