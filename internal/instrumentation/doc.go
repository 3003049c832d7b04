// Package instrumentation provides OpenTelemetry metrics, tracing, and
// audit logging for the workspace bridge.
//
// A Provider owns the meter and tracer providers and is configured from
// the environment (see DefaultConfig). When disabled, the Provider hands
// out no-op recorders so callers never need nil checks on individual
// instruments.
//
// Identity handling: the bridge identifies callers by session id, which
// is a capability bearer. General logs and metrics only ever see a hashed
// form of the id; the raw id appears exclusively in audit log streams
// when IncludePII is enabled.
package instrumentation
