package instrumentation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cast"
)

// Exporter types.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// DefaultServiceName is the OpenTelemetry service name.
const DefaultServiceName = "drivetransfer"

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: drivetransfer)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// Enabled determines if instrumentation is active (INSTRUMENTATION_ENABLED,
	// default: true). The metrics server is started separately.
	Enabled bool

	// MetricsExporter is one of "prometheus", "otlp" or "stdout" (default: "prometheus").
	MetricsExporter string

	// TracingExporter is one of "otlp", "stdout" or "none" (default: "none").
	TracingExporter string

	// OTLPEndpoint is the collector address without a scheme, e.g. "localhost:4318".
	OTLPEndpoint string

	// OTLPInsecure sends OTLP data over plain HTTP. Local collectors only.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based sampling ratio (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// DetailedLabels adds the receiver's email domain to transfer metrics.
	DetailedLabels bool

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig

	// Logger receives exporter warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// AuditLoggingConfig holds configuration for the ownership transfer audit log.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool

	// IncludePII controls whether to include full email addresses in audit logs.
	// When false (default), only hashed identifiers and domains are logged.
	IncludePII bool
}

// DefaultConfig reads the configuration from the process environment.
func DefaultConfig() Config {
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv builds a Config from lookup, falling back to defaults for
// unset or unparsable values.
func ConfigFromEnv(lookup func(string) (string, bool)) Config {
	env := envReader(lookup)
	return Config{
		ServiceName:       env.str("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env.str("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           env.boolean("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   env.str("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   env.str("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      env.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      env.boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: env.float("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    env.boolean("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean("AUDIT_LOGGING_ENABLED", true),
			IncludePII: env.boolean("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP metrics exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP tracing exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	return errors.Join(errs...)
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type envReader func(string) (string, bool)

func (e envReader) str(key, def string) string {
	if v, ok := e(key); ok && v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v, ok := e(key)
	if !ok || v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func (e envReader) float(key string, def float64) float64 {
	v, ok := e(key)
	if !ok || v == "" {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}
