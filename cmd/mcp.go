package cmd

import (
	"github.com/huangsam/reposcout/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the reposcout MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents analyze repositories,
rank profiles and inspect file changes through standard tools.

Logs go to stderr so stdout stays reserved for the protocol.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, svc, version)
	},
}
