package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/logger"
	"github.com/saasykit/atlas/internal/migration"
	"github.com/saasykit/atlas/internal/server"
	"github.com/saasykit/atlas/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
