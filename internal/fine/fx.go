package fine

import (
	"github.com/smallbiznis/condoledger/internal/fine/repository"
	"github.com/smallbiznis/condoledger/internal/fine/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fine.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
