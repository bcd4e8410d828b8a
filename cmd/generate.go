package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evalforge/evalforge/internal/app"
	"github.com/evalforge/evalforge/internal/dataset"
	"github.com/evalforge/evalforge/internal/document"
	"github.com/evalforge/evalforge/internal/synthesis"
	"github.com/evalforge/evalforge/internal/tui"
)

// generateOptions holds the generate command flags.
type generateOptions struct {
	output     string
	scratch    bool
	count      int
	evolutions int
	noExpected bool

	scenario       string
	task           string
	inputFormat    string
	expectedFormat string
}

// NewGenerateCmd creates the generate command.
func NewGenerateCmd(root *rootOptions) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate [document|url ...]",
		Short: "Generate golden test cases from documents",
		Long: `Generate golden test cases.

Documents (text, markdown, HTML or URLs) are chunked, embedded and
grouped into contexts; the model then writes an input and expected output
for each context, evolves the inputs and filters out low-quality ones.

With --scratch no documents are read and inputs are invented from the
styling flags alone.`,
		Example: `  # Goldens grounded in local documentation
  evalforge generate docs/manual.md docs/faq.md -o goldens.json

  # Crawl a page and the pages it links to
  evalforge generate https://example.com/docs --output web.jsonl

  # Ungrounded goldens for a support-bot scenario
  evalforge generate --scratch --count 10 \
      --task "answer billing questions" --scenario "frustrated customer"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "goldens.json", "dataset file to write (.json, .jsonl or .csv)")
	cmd.Flags().BoolVar(&opts.scratch, "scratch", false, "generate without documents")
	cmd.Flags().IntVar(&opts.count, "count", 5, "number of goldens with --scratch")
	cmd.Flags().IntVar(&opts.evolutions, "evolutions", -1, "evolution rewrites per input (-1 keeps the configured value)")
	cmd.Flags().BoolVar(&opts.noExpected, "no-expected", false, "skip expected output generation")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "environment the inputs should assume")
	cmd.Flags().StringVar(&opts.task, "task", "", "what the evaluated system does with an input")
	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", "shape constraint for generated inputs")
	cmd.Flags().StringVar(&opts.expectedFormat, "expected-format", "", "shape constraint for expected outputs")

	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts generateOptions, paths []string) error {
	if opts.scratch && len(paths) > 0 {
		return errors.New("--scratch takes no document arguments")
	}
	if !opts.scratch && len(paths) == 0 {
		return errors.New("document paths are required (or use --scratch)")
	}

	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger, app.Needs{})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	synthCfg := cfg.Synthesis
	if opts.evolutions >= 0 {
		synthCfg.NumEvolutions = opts.evolutions
	}

	var goldens []synthesis.Golden
	err = tui.Run(ctx, "generating goldens", logger, func(ctx context.Context, emit func(tui.Event)) error {
		synthOpts := []synthesis.Option{
			synthesis.WithLogger(logger.With("component", "synthesis")),
			synthesis.WithEvents(func(e synthesis.Event) { emit(tui.FromSynthesis(e)) }),
			synthesis.WithLoader(document.NewLoader(cfg.Crawler, logger.With("component", "crawler")).Load),
		}
		if opts.noExpected {
			synthOpts = append(synthOpts, synthesis.WithExpectedOutput(false))
		}
		if styling := opts.stylingConfig(); styling != (synthesis.StylingConfig{}) {
			synthOpts = append(synthOpts, synthesis.WithStyling(styling))
		}

		s := synthesis.New(a.Client, a.Embedding, synthCfg, synthOpts...)

		var genErr error
		if opts.scratch {
			goldens, genErr = s.GenerateFromScratch(ctx, opts.count)
		} else {
			goldens, genErr = s.GenerateFromDocuments(ctx, paths)
		}
		return genErr
	})
	if err != nil {
		return err
	}

	ds := dataset.New(goldens...)
	if err := ds.Save(opts.output); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}

	fmt.Printf("Saved %d goldens to %s\n", ds.Len(), opts.output)
	return nil
}

func (o generateOptions) stylingConfig() synthesis.StylingConfig {
	return synthesis.StylingConfig{
		Scenario:             o.scenario,
		Task:                 o.task,
		InputFormat:          o.inputFormat,
		ExpectedOutputFormat: o.expectedFormat,
	}
}
