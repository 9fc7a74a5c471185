// Package instrumentation provides OpenTelemetry instrumentation for
// drivetransfer.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - authenticated_sessions: Gauge of signed-in accounts (0 or 1)
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of authorization code exchanges by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Ownership Transfer Metrics:
//   - drive_ownership_transfers_total: Counter of transfer attempts by final state and failed step
//   - drive_ownership_transfer_duration_seconds: Histogram of transfer durations
//
// Metrics are exported via Prometheus on a dedicated port by default.
//
// # Tracing
//
// Spans are created for inbound HTTP requests, Google API calls
// (google.<service>.<operation>) and each ownership transfer step
// (drive.transfer.<step>).
//
// # Audit
//
// Every ownership transfer attempt produces one audit record. Email
// addresses are hashed unless AUDIT_LOGGING_INCLUDE_PII is set.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: drivetransfer)
//   - METRICS_DETAILED_LABELS: Add receiver domains to transfer metrics
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: Audit log controls
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "GET", "/api/my-files", 200, time.Since(start))
//	recorder.RecordTransfer(ctx, "pending_transfer_set", "", receiver, time.Since(start))
package instrumentation
