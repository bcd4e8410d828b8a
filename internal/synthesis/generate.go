package synthesis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/evalforge/evalforge/internal/document"
)

type inputResponse struct {
	Input string `json:"input"`
}

type expectedOutputResponse struct {
	ExpectedOutput string `json:"expected_output"`
}

type inputsResponse struct {
	Inputs []string `json:"inputs"`
}

// GenerateFromDocuments runs the full pipeline: load the documents at
// paths, chunk and embed each one, group similar chunks into contexts, and
// generate one golden per context. Documents are processed concurrently,
// bounded by Concurrency.
//
// A document that yields fewer chunks than MaxContextsPerDocument fails the
// whole run with an error wrapping document.ErrInsufficientChunks.
func (s *Synthesizer) GenerateFromDocuments(ctx context.Context, paths []string) ([]Golden, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("document synthesis requires an embedding service")
	}

	s.emit(StageLoad, "loading documents", 0, 0)
	docs, err := s.loadDocs(paths)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	s.logger.Info("documents loaded", "count", len(docs))

	chunker := document.NewChunker(document.ChunkerConfig{
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})

	perDoc := make([][]Golden, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			goldens, err := s.synthesizeDocument(gctx, doc, chunker, i+1, len(docs))
			if err != nil {
				return err
			}
			perDoc[i] = goldens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var goldens []Golden
	for _, gs := range perDoc {
		goldens = append(goldens, gs...)
	}
	s.emit(StageDone, "", len(goldens), len(goldens))
	s.logger.Info("synthesis complete", "documents", len(docs), "goldens", len(goldens))
	return goldens, nil
}

// synthesizeDocument turns one document into goldens.
func (s *Synthesizer) synthesizeDocument(ctx context.Context, doc document.Document, chunker *document.Chunker, docNum, docTotal int) ([]Golden, error) {
	s.emit(StageChunk, doc.Name, docNum, docTotal)

	chunks := document.ChunkDocument(doc, chunker)
	if len(chunks) < s.cfg.MaxContextsPerDocument {
		return nil, fmt.Errorf(
			"%w: document %q produced %d chunks but %d contexts are requested; reduce chunk_size or lower max_contexts_per_document",
			document.ErrInsufficientChunks, doc.Name, len(chunks), s.cfg.MaxContextsPerDocument,
		)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks of %q: %w", doc.Name, err)
	}

	s.emit(StageContext, doc.Name, docNum, docTotal)
	contexts, err := s.buildContexts(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("building contexts for %q: %w", doc.Name, err)
	}

	goldens := make([]Golden, 0, len(contexts))
	for i, bc := range contexts {
		golden, err := s.generateGolden(ctx, bc.texts, doc.Path, map[string]any{
			"context_quality": bc.score,
		})
		if err != nil {
			return nil, fmt.Errorf("generating golden %d for %q: %w", i+1, doc.Name, err)
		}
		goldens = append(goldens, golden)
	}
	s.logger.Debug("document synthesized", "document", doc.Name, "goldens", len(goldens))
	return goldens, nil
}

// GenerateFromContexts generates one golden per prepared context, skipping
// the document and embedding stages entirely.
func (s *Synthesizer) GenerateFromContexts(ctx context.Context, contexts [][]string) ([]Golden, error) {
	if len(contexts) == 0 {
		return nil, fmt.Errorf("no contexts provided")
	}
	for i, texts := range contexts {
		if len(texts) == 0 {
			return nil, fmt.Errorf("context %d is empty", i+1)
		}
	}

	goldens := make([]Golden, len(contexts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, texts := range contexts {
		g.Go(func() error {
			s.emit(StageGenerate, "", i+1, len(contexts))
			golden, err := s.generateGolden(gctx, texts, "", nil)
			if err != nil {
				return fmt.Errorf("generating golden for context %d: %w", i+1, err)
			}
			goldens[i] = golden
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.emit(StageDone, "", len(goldens), len(goldens))
	s.logger.Info("synthesis complete", "contexts", len(contexts), "goldens", len(goldens))
	return goldens, nil
}

// GenerateFromScratch generates count goldens with no grounding contexts.
// One batched call produces the base inputs; each then goes through the
// usual evolution and filtration stages.
func (s *Synthesizer) GenerateFromScratch(ctx context.Context, count int) ([]Golden, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	s.emit(StageGenerate, "generating inputs", 0, count)
	var resp inputsResponse
	if err := s.client.GenerateJSON(ctx, scratchPrompt(count, s.styling), &resp); err != nil {
		return nil, fmt.Errorf("generating inputs: %w", err)
	}
	if len(resp.Inputs) == 0 {
		return nil, fmt.Errorf("model returned no inputs")
	}
	if len(resp.Inputs) > count {
		resp.Inputs = resp.Inputs[:count]
	}
	if len(resp.Inputs) < count {
		s.logger.Warn("model returned fewer inputs than requested",
			"want", count, "got", len(resp.Inputs))
	}

	goldens := make([]Golden, len(resp.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, input := range resp.Inputs {
		g.Go(func() error {
			golden, err := s.refineInput(gctx, input)
			if err != nil {
				return fmt.Errorf("refining input %d: %w", i+1, err)
			}
			goldens[i] = golden
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.emit(StageDone, "", len(goldens), len(goldens))
	s.logger.Info("synthesis complete", "goldens", len(goldens))
	return goldens, nil
}

// generateGolden produces one golden from a context: generate an input,
// evolve it, filter it, then optionally add an expected output. extraMeta
// is merged into the golden's metadata.
func (s *Synthesizer) generateGolden(ctx context.Context, contextTexts []string, sourceFile string, extraMeta map[string]any) (Golden, error) {
	draw := func() (string, error) {
		s.emit(StageGenerate, "", 0, 0)
		var resp inputResponse
		if err := s.client.GenerateJSON(ctx, inputPrompt(contextTexts, s.styling), &resp); err != nil {
			return "", fmt.Errorf("generating input: %w", err)
		}
		if resp.Input == "" {
			return "", fmt.Errorf("model returned an empty input")
		}
		return resp.Input, nil
	}

	res, err := s.evolveAndFilter(ctx, draw, contextTexts)
	if err != nil {
		return Golden{}, err
	}

	golden := Golden{
		Input:      res.input,
		Context:    contextTexts,
		SourceFile: sourceFile,
		Metadata:   buildMetadata(extraMeta, res),
	}
	if s.includeExpected {
		var resp expectedOutputResponse
		if err := s.client.GenerateJSON(ctx, expectedOutputPrompt(res.input, contextTexts, s.styling), &resp); err != nil {
			return Golden{}, fmt.Errorf("generating expected output: %w", err)
		}
		golden.ExpectedOutput = resp.ExpectedOutput
	}
	return golden, nil
}

// refineInput runs the evolution and filtration stages over an already
// generated context-free input.
func (s *Synthesizer) refineInput(ctx context.Context, input string) (Golden, error) {
	draw := func() (string, error) { return input, nil }

	res, err := s.evolveAndFilter(ctx, draw, nil)
	if err != nil {
		return Golden{}, err
	}

	golden := Golden{
		Input:    res.input,
		Metadata: buildMetadata(nil, res),
	}
	if s.includeExpected {
		var resp expectedOutputResponse
		if err := s.client.GenerateJSON(ctx, expectedOutputPrompt(res.input, nil, s.styling), &resp); err != nil {
			return Golden{}, fmt.Errorf("generating expected output: %w", err)
		}
		golden.ExpectedOutput = resp.ExpectedOutput
	}
	return golden, nil
}

// drawResult is one evolved input attempt with its critic score.
type drawResult struct {
	input      string
	evolutions []Evolution
	score      float64
}

// evolveAndFilter applies NumEvolutions weighted-random evolution rewrites
// to an input from draw, then scores the result with the critic. A score
// below QualityThreshold triggers a fresh draw, up to MaxQualityRetries
// times; the best-scoring attempt wins.
func (s *Synthesizer) evolveAndFilter(ctx context.Context, draw func() (string, error), contextTexts []string) (drawResult, error) {
	var best drawResult
	accepted := false

	for attempt := 0; attempt <= s.cfg.MaxQualityRetries; attempt++ {
		input, err := draw()
		if err != nil {
			return drawResult{}, err
		}

		evolutions := make([]Evolution, 0, s.cfg.NumEvolutions)
		for range s.cfg.NumEvolutions {
			evo := s.pickEvolution()
			s.emit(StageEvolve, string(evo), 0, 0)
			var evolved inputResponse
			if err := s.client.GenerateJSON(ctx, evolvePrompt(input, contextTexts, evo), &evolved); err != nil {
				return drawResult{}, fmt.Errorf("applying %s evolution: %w", evo, err)
			}
			if evolved.Input == "" {
				return drawResult{}, fmt.Errorf("%s evolution returned an empty input", evo)
			}
			input = evolved.Input
			evolutions = append(evolutions, evo)
		}

		s.emit(StageFilter, "", 0, 0)
		var verdict qualityResponse
		if err := s.client.GenerateJSON(ctx, inputQualityPrompt(input), &verdict); err != nil {
			return drawResult{}, fmt.Errorf("scoring input: %w", err)
		}
		score := clamp01(verdict.Score)

		if best.input == "" || score > best.score {
			best = drawResult{input: input, evolutions: evolutions, score: score}
		}
		if score >= s.cfg.QualityThreshold {
			accepted = true
			break
		}
		s.logger.Debug("input below quality threshold, regenerating",
			"score", score,
			"threshold", s.cfg.QualityThreshold,
			"attempt", attempt+1,
			"reason", verdict.Reason,
		)
	}

	if !accepted {
		s.logger.Debug("keeping best input after exhausting retries",
			"score", best.score,
			"threshold", s.cfg.QualityThreshold,
		)
	}
	return best, nil
}

// buildMetadata assembles golden metadata from the filtration result and
// any pipeline extras.
func buildMetadata(extra map[string]any, res drawResult) map[string]any {
	meta := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		meta[k] = v
	}
	names := make([]string, len(res.evolutions))
	for i, evo := range res.evolutions {
		names[i] = string(evo)
	}
	meta["evolutions"] = names
	meta["quality_score"] = res.score
	return meta
}
