package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/audit"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	"github.com/smallbiznis/condoledger/internal/directory"
	"github.com/smallbiznis/condoledger/internal/fine"
	"github.com/smallbiznis/condoledger/internal/ledger"
	"github.com/smallbiznis/condoledger/internal/logger"
	"github.com/smallbiznis/condoledger/internal/observability"
	"github.com/smallbiznis/condoledger/internal/rent"
	"github.com/smallbiznis/condoledger/pkg/db"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

// withApp starts the services a command needs, fills targets through
// fx.Populate and stops everything once fn returns.
func withApp(ctx context.Context, fn func() error, targets ...interface{}) error {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		lock.Module,
		clock.Module,
		audit.Module,
		authorization.Module,
		directory.Module,
		ledger.Module,
		rent.Module,
		fine.Module,
		fx.Populate(targets...),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn()
}
