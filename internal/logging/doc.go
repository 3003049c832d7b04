// Package logging provides structured logging utilities for the
// workspace-mcp server.
//
// It centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// Session ids are the server's bearer capability: they are always logged
// through UserHash, never verbatim. Tokens are never logged directly; use
// SanitizeToken for length-only diagnostics.
package logging
