// Package tools holds the canonical tool registry shared by tools/list
// and tools/call. Each tool registers its schema and handler exactly
// once, so the advertised catalog can never drift from what is
// actually callable.
//
// Handlers receive the session's Capabilities bundle and never touch
// credentials directly. The per-service subpackages (gmail_tools,
// drive_tools, calendar_tools) contribute their tools through
// Register functions called at startup.
package tools
