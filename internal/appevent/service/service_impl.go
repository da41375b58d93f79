package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	"github.com/saasykit/atlas/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Recorder struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewRecorder(p Params) appeventdomain.Recorder {
	return &Recorder{
		db:    p.DB,
		log:   p.Log.Named("appevent.recorder"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (r *Recorder) Record(ctx context.Context, level appeventdomain.Level, message string, opts ...appeventdomain.Option) {
	if !level.Valid() {
		level = appeventdomain.LevelInfo
	}
	message = strings.TrimSpace(message)
	if len(message) > appeventdomain.MaxMessageLen {
		cut := appeventdomain.MaxMessageLen
		// Back off to a rune boundary so the stored text stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut]
	}

	event := appeventdomain.AppEvent{
		ID:        r.genID.Generate(),
		Level:     level,
		Message:   message,
		CreatedAt: r.clock.Now(),
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		// A failed audit write must not unwind the lifecycle operation.
		r.log.Error("app event write failed",
			zap.String("level", string(level)),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}

func (r *Recorder) List(ctx context.Context, req appeventdomain.ListRequest) ([]appeventdomain.AppEvent, error) {
	stmt := r.db.WithContext(ctx).Model(&appeventdomain.AppEvent{})
	if strings.TrimSpace(req.AccountID) != "" {
		accountID, err := snowflake.ParseString(strings.TrimSpace(req.AccountID))
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("account_id = ?", accountID)
	}
	if req.Level != "" {
		if !req.Level.Valid() {
			return nil, appeventdomain.ErrInvalidLevel
		}
		stmt = stmt.Where("level = ?", req.Level)
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []appeventdomain.AppEvent
	err := stmt.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}
