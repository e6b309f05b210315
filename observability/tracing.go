// Package observability configures the global OpenTelemetry providers.
package observability

import (
	"context"
	"strings"

	"nfl-pickem/logging"

	"github.com/uptrace/uptrace-go/uptrace"
)

// TracingConfig selects where spans are exported
type TracingConfig struct {
	Enabled        bool
	DSN            string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// InitTracing installs the Uptrace exporter and returns its shutdown hook.
// When disabled the global no-op provider stays in place and request spans
// are never started.
func InitTracing(cfg TracingConfig) func(context.Context) error {
	logger := logging.WithPrefix("Tracing")

	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return func(context.Context) error { return nil }
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Warn("Tracing enabled but UPTRACE_DSN is empty, leaving it off")
		return func(context.Context) error { return nil }
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)
	logger.Infof("Tracing enabled (service: %s, environment: %s)", cfg.ServiceName, cfg.Environment)

	return uptrace.Shutdown
}
