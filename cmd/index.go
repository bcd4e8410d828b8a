package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evalforge/evalforge/internal/app"
	"github.com/evalforge/evalforge/internal/dataset"
	"github.com/evalforge/evalforge/internal/tui"
	"github.com/evalforge/evalforge/internal/vectorstore"
)

// embedBatchSize bounds how many contexts are embedded per provider call
// during indexing.
const embedBatchSize = 32

// NewIndexCmd creates the index command.
func NewIndexCmd(root *rootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "index <dataset>",
		Short: "Index a dataset's contexts into the vector store",
		Long: `Index the contexts of a dataset into the configured vector store so
that evaluate can retrieve against them.

Context texts are deduplicated by content and keyed by a content-derived
ID, so re-running index on the same dataset overwrites instead of
duplicating.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, collection, args[0])
		},
	}

	cmd.Flags().StringVar(&collection, "collection", defaultCollection, "vector store collection")

	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, collection, path string) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	records := collectRecords(ds)
	if len(records) == 0 {
		return fmt.Errorf("dataset %s has no contexts to index", path)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger, app.Needs{VectorStore: true})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	err = tui.Run(ctx, "indexing dataset", logger, func(ctx context.Context, emit func(tui.Event)) error {
		if err := a.Store.EnsureCollection(ctx, collection, a.Embedding.Dimension()); err != nil {
			return fmt.Errorf("ensuring collection: %w", err)
		}

		for done := 0; done < len(records); {
			batch := records[done:min(done+embedBatchSize, len(records))]
			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = rec.Text
			}

			emit(tui.Event{Stage: "embed", Message: fmt.Sprintf("embedding %d contexts", len(batch)), Current: done, Total: len(records)})
			vectors, err := a.Embedding.EmbedTexts(ctx, texts)
			if err != nil {
				return fmt.Errorf("embedding contexts: %w", err)
			}
			for i := range batch {
				batch[i].Vector = vectors[i]
			}

			if err := a.Store.Upsert(ctx, collection, batch); err != nil {
				return fmt.Errorf("upserting contexts: %w", err)
			}
			done += len(batch)
			emit(tui.Event{Stage: "index", Message: fmt.Sprintf("indexed %d contexts", done), Current: done, Total: len(records)})
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d unique contexts into %q\n", len(records), collection)
	return nil
}

// collectRecords flattens a dataset's contexts into store records,
// deduplicating by content. IDs are derived from the text so the same
// context always maps to the same record.
func collectRecords(ds *dataset.Dataset) []vectorstore.Record {
	seen := make(map[uuid.UUID]struct{})
	var records []vectorstore.Record
	for _, golden := range ds.Goldens {
		for _, text := range golden.Context {
			if text == "" {
				continue
			}
			id := vectorstore.TextID(text)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, vectorstore.Record{
				ID:     id,
				Text:   text,
				Source: golden.SourceFile,
			})
		}
	}
	return records
}
