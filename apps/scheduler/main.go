package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/audit"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/clock"
	"github.com/smallbiznis/condoledger/internal/config"
	"github.com/smallbiznis/condoledger/internal/directory"
	"github.com/smallbiznis/condoledger/internal/ledger"
	"github.com/smallbiznis/condoledger/internal/logger"
	"github.com/smallbiznis/condoledger/internal/observability"
	"github.com/smallbiznis/condoledger/internal/rent"
	"github.com/smallbiznis/condoledger/internal/scheduler"
	"github.com/smallbiznis/condoledger/pkg/db"
	"github.com/smallbiznis/condoledger/pkg/lock"
	"go.uber.org/fx"
)

// The standalone scheduler runs the rent job without the HTTP surface. Several
// replicas may run side by side; the job lock keeps one generation per period.
func main() {
	app := fx.New(
		config.Module,
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.SchedulerEnabled = true
			return cfg
		}),
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		lock.Module,
		clock.Module,

		// Domain services required by scheduler
		audit.Module,
		authorization.Module,
		directory.Module,
		ledger.Module,
		rent.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
