package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/threadline/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for one tenant",
	Long: `Start the Model Context Protocol server so AI assistants can list, read
and process a tenant's conversations.

By default the server communicates over stdio using JSON-RPC. Use --port to
serve streamable HTTP instead.

Examples:
  # Stdio mode
  threadline mcp serve --app my-app

  # HTTP mode (for MCP Inspector, remote access)
  threadline mcp serve --app my-app --port 8081`,
	RunE: runMCPServe,
}

var (
	mcpApp  string
	mcpPort int
)

func init() {
	mcpServeCmd.Flags().StringVar(&mcpApp, "app", "", "Tenant the tools operate on")
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ports := &mcp.Ports{
		Documents: documentService,
		Processor: processService,
		Importer:  importService,
	}

	server, err := mcp.NewServer(ports, mcpApp)
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
