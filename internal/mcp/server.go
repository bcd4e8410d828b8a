package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/embedding"
	"github.com/evalforge/evalforge/internal/llm"
	"github.com/evalforge/evalforge/internal/vectorstore"
)

// Server wraps the MCP SDK server around the generation and evaluation
// services.
type Server struct {
	mcpServer *mcp.Server
	client    *llm.Client
	embedder  *embedding.Service
	store     vectorstore.Store
	synthesis config.SynthesisConfig
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server configuration. Store is optional: the search
// tool is only registered when a vector store is available.
type Config struct {
	Name      string
	Version   string
	Client    *llm.Client
	Embedder  *embedding.Service
	Store     vectorstore.Store
	Synthesis config.SynthesisConfig
	Logger    *slog.Logger
}

// NewServer creates an MCP server and registers the tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		client:    cfg.Client,
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		synthesis: cfg.Synthesis,
		logger:    logger,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP on the given transport. This blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerGenerateGoldens(); err != nil {
		return fmt.Errorf("generate_goldens: %w", err)
	}
	if err := s.registerEvaluate(); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if s.store != nil {
		if err := s.registerSearch(); err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}
	return nil
}
