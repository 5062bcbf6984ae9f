package observability

import (
	"github.com/smallbiznis/condoledger/internal/config"
	"github.com/smallbiznis/condoledger/internal/observability/metrics"
	"github.com/smallbiznis/condoledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideMetricsConfig,
		metrics.LedgerWithConfig,
		metrics.SchedulerWithConfig,
		provideTracingConfig,
		tracing.NewProvider,
	),
	fx.Invoke(func(trace.TracerProvider) {}),
)

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	}
}

func provideTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}
