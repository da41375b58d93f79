package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/gateway"
	"github.com/saasykit/atlas/internal/observability/metrics"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 5
	retryBaseDelay     = 30 * time.Second
	retryMaxDelay      = 30 * time.Minute
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        billingsyncdomain.Repository
	planRepo    plandomain.Repository
	accountRepo accountdomain.Repository
	gateway     gateway.Gateway
	events      appeventdomain.Recorder

	maxAttempts int
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Repo        billingsyncdomain.Repository
	PlanRepo    plandomain.Repository
	AccountRepo accountdomain.Repository
	Gateway     gateway.Gateway
	Events      appeventdomain.Recorder
}

func NewService(p Params) billingsyncdomain.Service {
	maxAttempts := p.Config.SyncMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingsync.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		planRepo:    p.PlanRepo,
		accountRepo: p.AccountRepo,
		gateway:     p.Gateway,
		events:      p.Events,

		maxAttempts: maxAttempts,
	}
}

func (s *Service) Enqueue(ctx context.Context, kind billingsyncdomain.Kind, targetID snowflake.ID) error {
	if !kind.Valid() {
		return billingsyncdomain.ErrInvalidKind
	}
	if targetID == 0 {
		return billingsyncdomain.ErrInvalidTarget
	}

	now := s.clock.Now()
	job := &billingsyncdomain.SyncJob{
		ID:          s.genID.Generate(),
		Queue:       billingsyncdomain.QueueGateway,
		Kind:        kind,
		TargetID:    targetID,
		Priority:    kind.Priority(),
		Status:      billingsyncdomain.JobStatusPending,
		MaxAttempts: s.maxAttempts,
		RunAfter:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return err
	}

	s.log.Debug("sync job enqueued",
		zap.String("kind", string(kind)),
		zap.String("target_id", targetID.String()),
		zap.Int("priority", job.Priority),
	)
	return nil
}

func (s *Service) List(ctx context.Context, req billingsyncdomain.ListJobsRequest) ([]billingsyncdomain.SyncJob, error) {
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) RunPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}
	now := s.clock.Now()
	jobs, err := s.repo.ClaimNext(ctx, s.db, billingsyncdomain.QueueGateway, now, limit)
	if err != nil {
		return 0, err
	}

	handlers := s.handlers()
	executed := 0
	for i := range jobs {
		job := jobs[i]
		if ctx.Err() != nil {
			// Shutting down; put unexecuted claims back.
			if err := s.repo.Release(ctx, s.db, job.ID, s.clock.Now()); err != nil {
				s.log.Warn("job release failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			}
			continue
		}
		s.execute(ctx, handlers, job)
		executed++
	}

	if pending, err := s.repo.CountPending(ctx, s.db, billingsyncdomain.QueueGateway); err == nil {
		metrics.Default().SetQueueDepth(billingsyncdomain.QueueGateway, int(pending))
	}
	return executed, nil
}

func (s *Service) execute(ctx context.Context, handlers map[billingsyncdomain.Kind]handler, job billingsyncdomain.SyncJob) {
	started := s.clock.Now()

	run, ok := handlers[job.Kind]
	var err error
	if !ok {
		err = billingsyncdomain.ErrInvalidKind
	} else {
		err = run(ctx, job)
	}

	now := s.clock.Now()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.Default().ObserveSyncJob(string(job.Kind), outcome, now.Sub(started))

	if err == nil {
		if mErr := s.repo.MarkSucceeded(ctx, s.db, job.ID, now); mErr != nil {
			s.log.Error("job success write failed", zap.String("job_id", job.ID.String()), zap.Error(mErr))
		}
		return
	}

	attempts := job.Attempts + 1
	if gateway.IsTransient(err) && attempts < job.MaxAttempts {
		delay := backoff(attempts)
		if mErr := s.repo.MarkRetry(ctx, s.db, job.ID, attempts, err.Error(), now.Add(delay), now); mErr != nil {
			s.log.Error("job retry write failed", zap.String("job_id", job.ID.String()), zap.Error(mErr))
			return
		}
		metrics.Default().IncSyncRetry(string(job.Kind))
		s.log.Warn("sync job will retry",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.Int("attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		return
	}

	if mErr := s.repo.MarkFailed(ctx, s.db, job.ID, attempts, err.Error(), now); mErr != nil {
		s.log.Error("job failure write failed", zap.String("job_id", job.ID.String()), zap.Error(mErr))
		return
	}
	metrics.Default().IncSyncFailure(string(job.Kind))
	s.log.Error("sync job failed permanently",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	opts := []appeventdomain.Option{
		appeventdomain.WithMetadata(map[string]any{
			"job_id": job.ID.String(),
			"kind":   string(job.Kind),
		}),
	}
	switch job.Kind {
	case billingsyncdomain.KindAccountCreate, billingsyncdomain.KindAccountUpdate,
		billingsyncdomain.KindAccountRestore, billingsyncdomain.KindAccountCancel:
		opts = append(opts, appeventdomain.WithAccount(job.TargetID))
	}
	s.events.Record(ctx, appeventdomain.LevelAlert,
		fmt.Sprintf("billing sync %s failed after %d attempts: %v", job.Kind, attempts, err),
		opts...,
	)
}

// backoff doubles per attempt from the base delay, capped.
func backoff(attempts int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}
