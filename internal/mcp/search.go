package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultSearchTopK is used when the caller does not ask for a count.
const defaultSearchTopK = 5

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Collection string `json:"collection" jsonschema:"The vector store collection to search"`
	Query      string `json:"query" jsonschema:"Natural language query, embedded and matched by cosine similarity"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"How many matches to return. Zero means 5."`
}

func (s *Server) registerSearch() error {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("input schema: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "search",
		Description: "Search an indexed collection by semantic similarity. " +
			"Returns the closest chunks with their similarity scores and source files.",
		InputSchema: schema,
	}, s.Search)
	return nil
}

// Search handles the search MCP tool call.
func (s *Server) Search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	if in.Collection == "" {
		return errorResult("collection is required"), nil, nil
	}
	if in.Query == "" {
		return errorResult("query is required"), nil, nil
	}
	topK := in.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	vector, err := s.embedder.EmbedText(ctx, in.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := s.store.Search(ctx, in.Collection, vector, topK)
	if err != nil {
		return errorResult("searching %q: %v", in.Collection, err), nil, nil
	}

	type matchOut struct {
		ID     string  `json:"id"`
		Score  float64 `json:"score"`
		Text   string  `json:"text"`
		Source string  `json:"source,omitempty"`
	}
	out := make([]matchOut, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchOut{
			ID:     m.ID.String(),
			Score:  m.Score,
			Text:   m.Text,
			Source: m.Source,
		})
	}

	result, err := jsonResult(map[string]any{
		"query":        in.Query,
		"collection":   in.Collection,
		"result_count": len(out),
		"matches":      out,
	})
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}
