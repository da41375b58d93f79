package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saasykit/atlas/internal/account"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	"github.com/saasykit/atlas/internal/account/resolver"
	"github.com/saasykit/atlas/internal/appevent"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	"github.com/saasykit/atlas/internal/billingsync"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/cancellation"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/gateway"
	"github.com/saasykit/atlas/internal/invitation"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	"github.com/saasykit/atlas/internal/plan"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"github.com/saasykit/atlas/internal/providers/email"
	"github.com/saasykit/atlas/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	account.Module,
	plan.Module,
	cancellation.Module,
	appevent.Module,
	billingsync.Module,
	gateway.Module,
	invitation.Module,
	email.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock

	accountSvc      accountdomain.Service
	planSvc         plandomain.Service
	cancellationSvc cancellationdomain.Service
	eventRecorder   appeventdomain.Recorder
	syncSvc         billingsyncdomain.Service
	invitationSvc   invitationdomain.Service
	tenantResolver  resolver.Resolver
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	AccountSvc      accountdomain.Service
	PlanSvc         plandomain.Service
	CancellationSvc cancellationdomain.Service
	EventRecorder   appeventdomain.Recorder
	SyncSvc         billingsyncdomain.Service
	InvitationSvc   invitationdomain.Service
	TenantResolver  resolver.Resolver
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		log:    p.Log.Named("http.server"),
		clock:  p.Clock,

		accountSvc:      p.AccountSvc,
		planSvc:         p.PlanSvc,
		cancellationSvc: p.CancellationSvc,
		eventRecorder:   p.EventRecorder,
		syncSvc:         p.SyncSvc,
		invitationSvc:   p.InvitationSvc,
		tenantResolver:  p.TenantResolver,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerTenantRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Accounts --------
	api.GET("/accounts", s.ListAccounts)
	api.POST("/accounts", s.CreateAccount)
	api.GET("/accounts/:id", s.GetAccountByID)
	api.PATCH("/accounts/:id", s.UpdateAccount)
	api.DELETE("/accounts/:id", s.DestroyAccount)
	api.POST("/accounts/:id/cancel", s.CancelAccount)
	api.POST("/accounts/:id/pause", s.PauseAccount)
	api.POST("/accounts/:id/unpause", s.UnpauseAccount)
	api.POST("/accounts/:id/restore", s.RestoreAccount)

	// -------- Invitations --------
	api.GET("/accounts/:id/invitations", s.ListInvitations)
	api.POST("/accounts/:id/invitations", s.CreateInvitation)
	api.POST("/invitations/accept", s.AcceptInvitation)

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
	api.GET("/plans/:id", s.GetPlanByID)
	api.PATCH("/plans/:id", s.UpdatePlan)
	api.DELETE("/plans/:id", s.DeletePlan)

	// -------- Cancellation taxonomy --------
	api.GET("/cancellation-categories", s.ListCancellationCategories)
	api.POST("/cancellation-categories", s.CreateCancellationCategory)
	api.PATCH("/cancellation-categories/:id", s.UpdateCancellationCategory)
	api.DELETE("/cancellation-categories/:id", s.DeleteCancellationCategory)
	api.GET("/cancellation-categories/:id/reasons", s.ListCancellationReasons)
	api.POST("/cancellation-categories/:id/reasons", s.CreateCancellationReason)
	api.PATCH("/cancellation-reasons/:id", s.UpdateCancellationReason)
	api.DELETE("/cancellation-reasons/:id", s.DeleteCancellationReason)

	// -------- Events --------
	api.GET("/events", s.ListAppEvents)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/sync-jobs", s.ListSyncJobs)
}

// registerTenantRoutes serves the tenant-scoped surface. Everything
// under /t rides the resolver middleware; / answers with the resolved
// tenant or the marketing fall-through marker.
func (s *Server) registerTenantRoutes() {
	s.engine.GET("/", s.TenantContext(), s.Whoami)

	t := s.engine.Group("/t", s.TenantContext())
	t.GET("/:slug", s.Whoami)
}
