package bootstrap

import (
	"log/slog"

	"github.com/commandcenter/inboxauth/config"
	"github.com/commandcenter/inboxauth/internal/observability/statsd"
)

// BuildMetrics returns the StatsD client. Dial failures are logged and yield a disabled client.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client, metrics disabled", "error", err)
		disabled, _ := statsd.NewClient(statsd.Config{})
		return disabled
	}
	if client.Enabled() {
		logger.Info("statsd metrics enabled", "addr", cfg.StatsdAddress, "prefix", cfg.Prefix)
	}
	return client
}
