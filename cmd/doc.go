// Package cmd implements the command-line interface for workspace-mcp.
//
// This package provides the following commands:
//   - serve: Start the multi-tenant Google Workspace MCP bridge
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
