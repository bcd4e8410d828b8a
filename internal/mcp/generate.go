package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/evalforge/evalforge/internal/synthesis"
)

// GenerateGoldensInput defines the input schema for the generate_goldens tool.
type GenerateGoldensInput struct {
	Paths         []string `json:"paths" jsonschema:"Document paths to synthesize goldens from (.txt, .md or .html)"`
	NumEvolutions int      `json:"num_evolutions,omitempty" jsonschema:"Evolution passes applied to each generated input. Zero keeps the configured default."`
}

func (s *Server) registerGenerateGoldens() error {
	schema, err := jsonschema.For[GenerateGoldensInput](nil)
	if err != nil {
		return fmt.Errorf("input schema: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "generate_goldens",
		Description: "Generate synthetic evaluation goldens from documents. " +
			"Chunks each document, groups similar chunks into contexts and asks the model " +
			"for grounded inputs, evolved for difficulty and filtered for quality.",
		InputSchema: schema,
	}, s.GenerateGoldens)
	return nil
}

// GenerateGoldens handles the generate_goldens MCP tool call.
func (s *Server) GenerateGoldens(ctx context.Context, _ *mcp.CallToolRequest, in GenerateGoldensInput) (*mcp.CallToolResult, any, error) {
	if len(in.Paths) == 0 {
		return errorResult("no document paths given"), nil, nil
	}

	cfg := s.synthesis
	if in.NumEvolutions > 0 {
		cfg.NumEvolutions = in.NumEvolutions
	}

	synth := synthesis.New(s.client, s.embedder, cfg, synthesis.WithLogger(s.logger))
	goldens, err := synth.GenerateFromDocuments(ctx, in.Paths)
	if err != nil {
		return errorResult("generating goldens: %v", err), nil, nil
	}

	result, err := jsonResult(map[string]any{
		"count":   len(goldens),
		"goldens": goldens,
	})
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}
