package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts the current time so that date rules can be tested.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func ProvideSystemClock() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(ProvideSystemClock),
)
