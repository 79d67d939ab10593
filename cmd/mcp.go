package cmd

import (
	"kcdev/internal/mcpserver"

	"github.com/spf13/cobra"
)

var mcpFlags configFlags

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve kcdev tools over the Model Context Protocol on stdio",
	Long: `Runs an MCP server on stdin/stdout so AI assistants can start and stop a
local Keycloak, inspect its status, create users and obtain tokens. Any
instance still running when the client disconnects is stopped.`,
	RunE: runMCP,
}

func init() {
	mcpFlags.register(mcpCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := mcpFlags.resolve()
	if err != nil {
		return err
	}
	return mcpserver.New(GetVersion(), cfg).Start(cmd.Context())
}
