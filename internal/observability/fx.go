// Package observability wires metrics registration into the app lifecycle.
package observability

import (
	"github.com/splitnest/splitnest/internal/config"
	"github.com/splitnest/splitnest/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(provideMetricsConfig),
	fx.Invoke(ensureRiskMetrics),
)

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	}
}

func ensureRiskMetrics(cfg metrics.Config) {
	metrics.RiskWithConfig(cfg)
}
