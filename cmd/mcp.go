package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/evalforge/evalforge/internal/app"
	"github.com/evalforge/evalforge/internal/mcp"
)

// NewMCPCmd creates the serve-mcp command.
func NewMCPCmd(root *rootOptions) *cobra.Command {
	var withSearch bool

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve generation and evaluation tools over MCP",
		Long: `Serve golden generation and evaluation tools to MCP clients over
stdio. With --with-search the configured vector store is connected and a
search tool is registered as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, root, withSearch)
		},
	}

	cmd.Flags().BoolVar(&withSearch, "with-search", false, "connect the vector store and register the search tool")

	return cmd
}

func runMCP(cmd *cobra.Command, root *rootOptions, withSearch bool) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting MCP server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger, app.Needs{VectorStore: withSearch})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := mcp.NewServer(mcp.Config{
		Name:      "evalforge",
		Version:   AppVersion,
		Client:    a.Client,
		Embedder:  a.Embedding,
		Store:     a.Store,
		Synthesis: cfg.Synthesis,
		Logger:    logger.With("component", "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "transport", "stdio", "search", withSearch)

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
