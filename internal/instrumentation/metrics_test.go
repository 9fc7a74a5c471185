package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a manual reader so tests can
// inspect what was recorded.
func newTestMetrics(t *testing.T, detailedLabels bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailedLabels)
	require.NoError(t, err)
	return m, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			return sum.DataPoints
		}
	}
	return nil
}

func attrValue(set attribute.Set, key string) (string, bool) {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "", false
	}
	return v.AsString(), true
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx := context.Background()
	metrics, reader := newTestMetrics(t, false)

	metrics.RecordHTTPRequest(ctx, "GET", "/api/my-files", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "GET", "/api/my-files", 200, 50*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/api/transfer", 500, 50*time.Millisecond)

	points := collectSum(t, reader, "http_requests_total")
	require.Len(t, points, 2)

	var total int64
	for _, p := range points {
		total += p.Value
	}
	assert.Equal(t, int64(3), total)
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	ctx := context.Background()
	metrics, reader := newTestMetrics(t, false)

	metrics.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationCreate, StatusError, 500*time.Millisecond)

	points := collectSum(t, reader, "google_api_operations_total")
	require.Len(t, points, 2)
	for _, p := range points {
		service, ok := attrValue(p.Attributes, attrService)
		require.True(t, ok)
		assert.Equal(t, ServiceDrive, service)
	}
}

func TestMetrics_RecordOAuth(t *testing.T) {
	ctx := context.Background()
	metrics, reader := newTestMetrics(t, false)

	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthAuth(ctx, OAuthResultFailure)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)

	assert.Len(t, collectSum(t, reader, "oauth_auth_total"), 2)
	assert.Len(t, collectSum(t, reader, "oauth_token_refresh_total"), 1)
}

func TestMetrics_AuthenticatedSessions(t *testing.T) {
	ctx := context.Background()
	metrics, reader := newTestMetrics(t, false)

	metrics.SessionStarted(ctx)
	metrics.SessionEnded(ctx)
	metrics.SessionStarted(ctx)

	points := collectSum(t, reader, "authenticated_sessions")
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), points[0].Value)
}

func TestMetrics_RecordTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("without detailed labels", func(t *testing.T) {
		metrics, reader := newTestMetrics(t, false)

		metrics.RecordTransfer(ctx, "pending_transfer_set", "", "bob@example.com", time.Second)
		metrics.RecordTransfer(ctx, "failed", "verify_owner", "bob@example.com", time.Second)

		points := collectSum(t, reader, "drive_ownership_transfers_total")
		require.Len(t, points, 2)
		for _, p := range points {
			_, ok := attrValue(p.Attributes, attrDomain)
			assert.False(t, ok, "receiver domain must not be recorded")

			step, _ := attrValue(p.Attributes, attrStep)
			state, _ := attrValue(p.Attributes, attrState)
			if state == "failed" {
				assert.Equal(t, "verify_owner", step)
			} else {
				assert.Equal(t, "none", step)
			}
		}
	})

	t.Run("with detailed labels", func(t *testing.T) {
		metrics, reader := newTestMetrics(t, true)

		metrics.RecordTransfer(ctx, "pending_transfer_set", "", "Bob@Example.com", time.Second)

		points := collectSum(t, reader, "drive_ownership_transfers_total")
		require.Len(t, points, 1)
		domain, ok := attrValue(points[0].Attributes, attrDomain)
		require.True(t, ok)
		assert.Equal(t, "example.com", domain)
	})
}

func TestMetrics_WithProvider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/api/auth-status", 200, 100*time.Millisecond)
	metrics.RecordTransfer(ctx, "failed", "grant_writer", "", time.Second)
}

func TestMetrics_NoOp_WhenDisabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ctx, Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil even when disabled")
	}

	// All these should not panic even with nil underlying metrics
	metrics.RecordHTTPRequest(ctx, "GET", "/", 200, 100*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationList, StatusSuccess, 200*time.Millisecond)
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	metrics.SessionStarted(ctx)
	metrics.SessionEnded(ctx)
	metrics.RecordTransfer(ctx, "failed", "verify_owner", "bob@example.com", time.Second)
}
