package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrState     = "state"
	attrStep      = "step"
	attrDomain    = "receiver_domain"
)

// Metrics provides methods for recording observability metrics.
//
// The zero value is a valid no-op recorder, which is what disabled
// instrumentation and most tests use.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Session metrics
	authenticatedSessions metric.Int64UpDownCounter

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Ownership transfer metrics
	transfersTotal   metric.Int64Counter
	transferDuration metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// instruments creates instruments on a meter, keeping the first error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) counter(name, description, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	b.keep(name, err)
	return c
}

func (b *instruments) upDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	b.keep(name, err)
	return c
}

func (b *instruments) seconds(name, description string, buckets ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	b.keep(name, err)
	return h
}

func (b *instruments) keep(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
}

// NewMetrics creates every instrument on meter. detailedLabels adds the
// receiver's email domain to transfer metrics.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	b := &instruments{meter: meter}

	m := &Metrics{
		httpRequestsTotal: b.counter("http_requests_total",
			"Total number of HTTP requests", "{request}"),
		httpRequestDuration: b.seconds("http_request_duration_seconds",
			"HTTP request duration in seconds", 0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),

		authenticatedSessions: b.upDownCounter("authenticated_sessions",
			"Number of signed-in Google accounts (0 or 1)", "{session}"),

		googleAPIOperationsTotal: b.counter("google_api_operations_total",
			"Total number of Google API operations", "{operation}"),
		googleAPIOperationDuration: b.seconds("google_api_operation_duration_seconds",
			"Google API operation duration in seconds", 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),

		oauthAuthTotal: b.counter("oauth_auth_total",
			"Total number of OAuth authorization code exchanges", "{attempt}"),
		oauthTokenRefreshTotal: b.counter("oauth_token_refresh_total",
			"Total number of OAuth token refresh attempts", "{attempt}"),

		transfersTotal: b.counter("drive_ownership_transfers_total",
			"Total number of ownership transfer attempts by final state", "{transfer}"),
		transferDuration: b.seconds("drive_ownership_transfer_duration_seconds",
			"Ownership transfer duration in seconds", 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),

		detailedLabels: detailedLabels,
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// observe adds one to counter and records d on histogram with the same labels.
// Nil instruments belong to a zero Metrics and are skipped.
func observe(ctx context.Context, counter metric.Int64Counter, histogram metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	if counter == nil || histogram == nil {
		return
	}
	set := metric.WithAttributes(attrs...)
	counter.Add(ctx, 1, set)
	histogram.Record(ctx, d.Seconds(), set)
}

// RecordHTTPRequest records an inbound request. path must be a route
// pattern, never the raw URL.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	observe(ctx, m.httpRequestsTotal, m.httpRequestDuration, duration,
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
}

// RecordGoogleAPIOperation records one Drive API call.
//
//   - service: ServiceDrive
//   - operation: one of the Operation constants
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	observe(ctx, m.googleAPIOperationsTotal, m.googleAPIOperationDuration, duration,
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
}

// RecordOAuthAuth records an authorization code exchange with its result.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal != nil {
		m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
	}
}

// RecordOAuthTokenRefresh records a token refresh with its result.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal != nil {
		m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
	}
}

// SessionStarted marks the account as signed in.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m.authenticatedSessions != nil {
		m.authenticatedSessions.Add(ctx, 1)
	}
}

// SessionEnded marks the account as signed out.
func (m *Metrics) SessionEnded(ctx context.Context) {
	if m.authenticatedSessions != nil {
		m.authenticatedSessions.Add(ctx, -1)
	}
}

// RecordTransfer records the outcome of an ownership transfer attempt.
//
// state is the final state (pending_transfer_set or failed) and step the
// step that failed, empty on success. Only the receiver's domain is ever
// recorded, and only with detailed labels.
func (m *Metrics) RecordTransfer(ctx context.Context, state, step, receiver string, duration time.Duration) {
	if step == "" {
		step = "none"
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrState, state),
		attribute.String(attrStep, step),
	}
	if m.detailedLabels && receiver != "" {
		attrs = append(attrs, attribute.String(attrDomain, ReceiverDomain(receiver)))
	}

	observe(ctx, m.transfersTotal, m.transferDuration, duration, attrs...)
}
