// Package worker drives the billing sync queue in the background.
package worker

import (
	"context"
	"time"

	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pollInterval = 5 * time.Second
	batchSize    = 10
	lockKey      = "atlas:billingsync:claim"
	lockTTL      = 30 * time.Second
)

// Pool polls for due jobs and executes them on a small set of
// goroutines. When several replicas run, a redis lock serializes the
// claim so a batch is only executed once.
type Pool struct {
	log     *zap.Logger
	service billingsyncdomain.Service
	locker  *ratelimit.Locker
	workers int

	cancel context.CancelFunc
	done   chan struct{}
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Service billingsyncdomain.Service
	Locker  *ratelimit.Locker `optional:"true"`
}

func New(p Params) *Pool {
	workers := p.Config.SyncWorkers
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		log:     p.Log.Named("billingsync.worker"),
		service: p.Service,
		locker:  p.Locker,
		workers: workers,
		done:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		p.log.Info("billing sync worker started", zap.Int("workers", p.workers))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *Pool) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) tick(ctx context.Context) {
	token, ok, err := p.locker.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		p.log.Warn("claim lock unavailable", zap.Error(err))
		return
	}
	if !ok {
		// Another replica holds the queue.
		return
	}
	defer func() {
		if err := p.locker.Release(ctx, lockKey, token); err != nil {
			p.log.Warn("claim lock release failed", zap.Error(err))
		}
	}()

	// Drain until the queue has nothing due, batch per worker slot.
	for {
		executed, err := p.service.RunPending(ctx, batchSize*p.workers)
		if err != nil {
			p.log.Error("sync batch failed", zap.Error(err))
			return
		}
		if executed < batchSize*p.workers || ctx.Err() != nil {
			return
		}
	}
}

// Register hooks the pool into the application lifecycle.
func Register(lc fx.Lifecycle, pool *Pool) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pool.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return pool.Stop(ctx)
		},
	})
}
