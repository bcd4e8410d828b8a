package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/evalforge/evalforge/internal/metrics"
)

// EvaluateInput defines the input schema for the evaluate tool.
type EvaluateInput struct {
	Input            string   `json:"input" jsonschema:"The user input the system answered"`
	ActualOutput     string   `json:"actual_output" jsonschema:"The answer produced by the system under test"`
	ExpectedOutput   string   `json:"expected_output,omitempty" jsonschema:"The reference answer. Required by contextual_precision and contextual_recall."`
	RetrievalContext []string `json:"retrieval_context,omitempty" jsonschema:"The chunks retrieved to ground the answer. Required by the contextual metrics."`
	Metrics          []string `json:"metrics" jsonschema:"Metric names to score with, e.g. answer_relevancy"`
	Threshold        float64  `json:"threshold,omitempty" jsonschema:"Passing score threshold in (0,1]. Zero keeps the default of 0.5."`
}

func (s *Server) registerEvaluate() error {
	schema, err := jsonschema.For[EvaluateInput](nil)
	if err != nil {
		return fmt.Errorf("input schema: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "evaluate",
		Description: "Score a single RAG test case with LLM-judged metrics. " +
			"Available metrics: " + strings.Join(metrics.Names(), ", ") + ".",
		InputSchema: schema,
	}, s.Evaluate)
	return nil
}

// Evaluate handles the evaluate MCP tool call.
func (s *Server) Evaluate(ctx context.Context, _ *mcp.CallToolRequest, in EvaluateInput) (*mcp.CallToolResult, any, error) {
	if len(in.Metrics) == 0 {
		return errorResult("no metrics requested (known: %s)", strings.Join(metrics.Names(), ", ")), nil, nil
	}

	var opts []metrics.Option
	if in.Threshold > 0 {
		opts = append(opts, metrics.WithThreshold(in.Threshold))
	}
	ms := make([]metrics.Metric, 0, len(in.Metrics))
	for _, name := range in.Metrics {
		m, err := metrics.ByName(name, s.client, opts...)
		if err != nil {
			return errorResult("%v", err), nil, nil
		}
		ms = append(ms, m)
	}

	tc := metrics.LLMTestCase{
		Input:            in.Input,
		ActualOutput:     in.ActualOutput,
		ExpectedOutput:   in.ExpectedOutput,
		RetrievalContext: in.RetrievalContext,
	}
	results := make([]metrics.Result, 0, len(ms))
	for _, m := range ms {
		res, err := m.Measure(ctx, tc)
		if err != nil {
			// Missing required fields end up here; the message names them.
			return errorResult("measuring %s: %v", m.Name(), err), nil, nil
		}
		results = append(results, res)
	}

	result, err := jsonResult(map[string]any{"results": results})
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}
