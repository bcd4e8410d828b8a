// Package mcp implements a Model Context Protocol (MCP) server.
//
// The server exposes evalforge's pipeline to MCP clients (Genkit CLI,
// editors, agent runtimes) as three tools:
//
//   - generate_goldens: synthesize evaluation goldens from documents
//   - evaluate: score a test case with the LLM-judged metrics
//   - search: semantic search over an indexed vector store collection
//
// # Tool Handler Pattern
//
// Each tool follows the same shape:
//
//  1. Define an input struct with JSON tags and jsonschema descriptions
//  2. Infer the schema with jsonschema.For
//  3. Register with mcp.AddTool and a typed handler method
//  4. Build responses inline, no conversion layer
//
// All tool output is a single JSON text block so clients parse results
// uniformly.
//
// # Error Handling
//
// Handlers distinguish two failure kinds:
//
//   - Caller-fixable problems (bad paths, unknown metric names, missing
//     collections) return a CallToolResult with IsError=true so the
//     client model can read the message and correct its call.
//
//   - System failures (provider outages, marshaling bugs) return an
//     error and surface as MCP protocol errors.
//
// The search tool is registered only when a vector store is configured;
// generate_goldens and evaluate are always available.
package mcp
