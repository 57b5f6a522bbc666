package sdk

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcic-ai/knowledge-sdk/config"
	"github.com/bcic-ai/knowledge-sdk/persist"
	"github.com/bcic-ai/knowledge-sdk/plugin"
)

// Option configures the System.
type Option func(*systemConfig)

// systemConfig holds configuration for the System instance.
type systemConfig struct {
	logger     *slog.Logger
	cfg        *config.Config
	configPath string
	backend    persist.Backend
	plugins    []plugin.CapsulePlugin
	tracer     trace.Tracer
	meter      metric.Meter
}

// WithLogger sets a custom logger for the system.
// If not provided, a default JSON logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *systemConfig) {
		c.logger = logger
	}
}

// WithConfig sets an already-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(c *systemConfig) {
		c.cfg = cfg
	}
}

// WithConfigPath loads the configuration from the given knowledge.yaml
// path or directory. Ignored when WithConfig is also set.
func WithConfigPath(path string) Option {
	return func(c *systemConfig) {
		c.configPath = path
	}
}

// WithBackend injects a persistence backend, overriding any backend the
// configuration would construct. The system takes ownership and closes it
// on Shutdown.
func WithBackend(b persist.Backend) Option {
	return func(c *systemConfig) {
		c.backend = b
	}
}

// WithPlugins registers capsule plugins in the transform pipeline, in the
// given order.
func WithPlugins(plugins ...plugin.CapsulePlugin) Option {
	return func(c *systemConfig) {
		c.plugins = append(c.plugins, plugins...)
	}
}

// WithTracer enables OpenTelemetry tracing of store operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *systemConfig) {
		c.tracer = tracer
	}
}

// WithMeter enables OpenTelemetry metrics for store operations.
func WithMeter(meter metric.Meter) Option {
	return func(c *systemConfig) {
		c.meter = meter
	}
}
