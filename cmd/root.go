package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the workspace-mcp application
var rootCmd = &cobra.Command{
	Use:   "workspace-mcp",
	Short: "Multi-tenant MCP bridge for Google Workspace",
	Long: `workspace-mcp exposes Gmail, Drive, and Calendar to MCP clients over
per-user HTTP endpoints.

Each user gets an isolated session: a session id doubles as the URL path
segment of the user's MCP endpoint, and the Google OAuth tokens stored
behind it never leak across sessions. Tools are served over JSON-RPC at
/mcp/{userId} once the user has completed the OAuth consent flow.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "workspace-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
