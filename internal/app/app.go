// Package app wires configuration into the shared service runtime used by
// every entry point (CLI commands, the MCP server).
//
// Setup builds the AI runtime (Genkit, model client, embedding service)
// and, on request, the storage services (vector store, run persistence).
// Storage is opt-in via Needs so file-based workflows - generate goldens
// from documents, save them to JSON - run without a database.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evalforge/evalforge/internal/benchmark"
	"github.com/evalforge/evalforge/internal/config"
	"github.com/evalforge/evalforge/internal/embedding"
	"github.com/evalforge/evalforge/internal/llm"
	"github.com/evalforge/evalforge/internal/vectorstore"
)

// Needs declares the optional service groups an entry point requires.
// The AI runtime is always initialized; storage comes up only on request.
type Needs struct {
	// VectorStore brings up the retrieval backend selected in the config
	// (used by index, evaluate and the MCP search tool).
	VectorStore bool

	// Runs brings up benchmark run persistence (PostgreSQL).
	Runs bool
}

// App is the application service container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// AI runtime, always present after Setup.
	Genkit    *genkit.Genkit
	Client    *llm.Client
	Embedding *embedding.Service

	// Storage services, nil unless requested via Needs.
	DBPool *pgxpool.Pool
	Store  vectorstore.Store
	Runs   *benchmark.RunStore

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse initialization order. The trace
// flush runs last so spans from the teardown itself still export.
func (a *App) Close() error {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
