package instrumentation

import (
	"context"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T) (context.Context, *Metrics) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}
	return ctx, metrics
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "GET", "/session/new", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp/abc", 500, 50*time.Millisecond)
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationSearch, StatusSuccess, 200*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationCreate, StatusError, 500*time.Millisecond)
	metrics.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationGet, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordOAuthAuth(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordOAuthAuth(ctx, OAuthResultSuccess)
	metrics.RecordOAuthAuth(ctx, OAuthResultFailure)
}

func TestMetrics_RecordOAuthTokenRefresh(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	metrics.RecordOAuthTokenRefresh(ctx, OAuthResultExpired)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.RecordToolInvocation(ctx, testToolGmail, StatusSuccess, 150*time.Millisecond)
	metrics.RecordToolInvocation(ctx, testToolCalendar, StatusError, 2*time.Second)
}

func TestMetrics_RecordToolInvocationForSession(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// detailedLabels is off by default, the session label must be dropped
	metrics.RecordToolInvocationForSession(ctx, testToolDrive, StatusSuccess, testSession, 50*time.Millisecond)
	metrics.RecordToolInvocationForSession(ctx, testToolDrive, StatusSuccess, "", 50*time.Millisecond)
}

func TestMetrics_ActiveSessions(t *testing.T) {
	ctx, metrics := newTestMetrics(t)

	// Should not panic
	metrics.IncrementActiveSessions(ctx)
	metrics.IncrementActiveSessions(ctx)
	metrics.DecrementActiveSessions(ctx)
}

func TestMetrics_ZeroValueIsNoop(t *testing.T) {
	ctx := context.Background()
	var m Metrics

	// Uninitialized instruments must silently drop records
	m.RecordHTTPRequest(ctx, "GET", "/status/x", 200, time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationSend, StatusSuccess, time.Millisecond)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
	m.RecordToolInvocation(ctx, testToolGmail, StatusSuccess, time.Millisecond)
	m.RecordToolInvocationForSession(ctx, testToolGmail, StatusSuccess, testSession, time.Millisecond)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)
}
