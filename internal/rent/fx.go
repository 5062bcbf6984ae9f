package rent

import (
	"github.com/smallbiznis/condoledger/internal/rent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rent.service",
	fx.Provide(service.NewService),
)
