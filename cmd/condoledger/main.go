package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/audit"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	"github.com/smallbiznis/condoledger/internal/directory"
	"github.com/smallbiznis/condoledger/internal/fine"
	"github.com/smallbiznis/condoledger/internal/ledger"
	"github.com/smallbiznis/condoledger/internal/logger"
	"github.com/smallbiznis/condoledger/internal/migration"
	"github.com/smallbiznis/condoledger/internal/observability"
	"github.com/smallbiznis/condoledger/internal/payment"
	"github.com/smallbiznis/condoledger/internal/ratelimit"
	"github.com/smallbiznis/condoledger/internal/rent"
	"github.com/smallbiznis/condoledger/internal/reservation"
	"github.com/smallbiznis/condoledger/internal/scheduler"
	"github.com/smallbiznis/condoledger/internal/server"
	"github.com/smallbiznis/condoledger/pkg/db"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		lock.Module,
		clock.Module,

		// Functional Domains
		audit.Module,
		authorization.Module,
		directory.Module,
		ledger.Module,
		payment.Module,
		rent.Module,
		fine.Module,
		reservation.Module,

		scheduler.Module,
		ratelimit.Module,
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
