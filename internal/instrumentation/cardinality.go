package instrumentation

import (
	"strings"

	"github.com/teemow/workspace-mcp/internal/logging"
)

// Cardinality management helpers for metrics.
//
// High cardinality in metrics increases memory usage in Prometheus,
// slows queries, and raises storage costs. Session ids are unbounded,
// so they must never appear as raw label values.

// SessionLabel reduces a session id to a bounded, non-reversible label
// value. Returns "unknown" for an empty id.
func SessionLabel(sessionID string) string {
	if sessionID == "" {
		return "unknown"
	}
	return logging.AnonymizeID(sessionID)
}

// ToolTarget splits a tool name into the Google service it targets and
// the operation it performs. Tool names follow the service_operation
// convention, so both parts stay bounded label values.
func ToolTarget(toolName string) (service, operation string) {
	service, operation, ok := strings.Cut(toolName, "_")
	if !ok {
		return "unknown", toolName
	}
	return service, operation
}

// Common operation types for Google API metrics.
// Status, OAuth, and Service constants are defined in config.go.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationSend   = "send"
	OperationSearch = "search"
)
