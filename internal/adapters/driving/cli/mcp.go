package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/policy-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/policy-rag/internal/app"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server for AI assistant integration.
The server speaks JSON-RPC over stdio and offers the tools ask_policy,
search_policies and list_categories.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "policy-rag": {
        "command": "/path/to/policy-rag",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Seed(ctx)

		server, err := mcp.NewServer(a.RAG, version)
		if err != nil {
			return err
		}
		return server.Run(ctx)
	})
}
