package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evalforge/evalforge/internal/app"
	"github.com/evalforge/evalforge/internal/benchmark"
	"github.com/evalforge/evalforge/internal/dataset"
	"github.com/evalforge/evalforge/internal/metrics"
	"github.com/evalforge/evalforge/internal/tui"
)

// evaluateOptions holds the evaluate command flags.
type evaluateOptions struct {
	name        string
	metricNames []string
	threshold   float64
	collection  string
	topK        int
	concurrency int
	noSave      bool
}

// NewEvaluateCmd creates the evaluate command.
func NewEvaluateCmd(root *rootOptions) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate <dataset>",
		Short: "Evaluate retrieval quality against a dataset",
		Long: `Evaluate a retrieval pipeline against a dataset.

Each golden's input is embedded and searched in the vector store; an
answer is generated over the retrieved chunks and judged by the selected
metrics. The report is printed and, unless --no-save is given, persisted
so that 'evalforge runs' can revisit it.

Available metrics: ` + strings.Join(metrics.Names(), ", ") + `.`,
		Example: `  # Score everything with default thresholds
  evalforge evaluate goldens.json

  # Retrieval-only metrics with a stricter threshold
  evalforge evaluate goldens.json --metrics contextual_precision,contextual_recall --threshold 0.7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "run name (default: dataset file name)")
	cmd.Flags().StringSliceVar(&opts.metricNames, "metrics", metrics.Names(), "metrics to score")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "passing threshold for all metrics (-1 keeps per-metric defaults)")
	cmd.Flags().StringVar(&opts.collection, "collection", defaultCollection, "vector store collection to search")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "chunks retrieved per input (0 uses the configured value)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "goldens evaluated in parallel")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not persist the run")

	return cmd
}

func runEvaluate(cmd *cobra.Command, root *rootOptions, opts evaluateOptions, path string) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	if ds.Len() == 0 {
		return fmt.Errorf("dataset %s is empty", path)
	}

	// Catch metric typos before the expensive provider setup.
	known := metrics.Names()
	for _, name := range opts.metricNames {
		if !slices.Contains(known, strings.TrimSpace(name)) {
			return fmt.Errorf("unknown metric %q (known: %s)", name, strings.Join(known, ", "))
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger, app.Needs{VectorStore: true, Runs: !opts.noSave})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ms := make([]metrics.Metric, 0, len(opts.metricNames))
	for _, name := range opts.metricNames {
		var mOpts []metrics.Option
		if opts.threshold >= 0 {
			mOpts = append(mOpts, metrics.WithThreshold(opts.threshold))
		}
		m, err := metrics.ByName(strings.TrimSpace(name), a.Client, mOpts...)
		if err != nil {
			return err
		}
		ms = append(ms, m)
	}

	name := opts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	topK := opts.topK
	if topK == 0 {
		topK = cfg.TopK
	}

	var report *benchmark.Report
	err = tui.Run(ctx, "evaluating dataset", logger, func(ctx context.Context, emit func(tui.Event)) error {
		runner, err := benchmark.NewRunner(a.Store, a.Embedding, a.Client, ms,
			benchmark.Config{Collection: opts.collection, TopK: topK, Concurrency: opts.concurrency},
			benchmark.WithLogger(logger.With("component", "benchmark")),
			benchmark.WithEvents(func(e benchmark.Event) { emit(tui.FromBenchmark(e)) }),
		)
		if err != nil {
			return err
		}
		report, err = runner.Run(ctx, name, ds.Goldens)
		return err
	})
	if err != nil {
		return err
	}

	if !opts.noSave {
		if err := a.Runs.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Printf("Saved run %s ('evalforge runs show %s' revisits it)\n\n", report.Run.ID, report.Run.ID)
	}

	printReport(report)
	return nil
}

// printReport renders a report as markdown, styled when stdout is a
// terminal.
func printReport(report *benchmark.Report) {
	markdown := benchmark.RenderMarkdown(report)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		markdown = tui.NewMarkdownRenderer(0).Render(markdown)
	}
	fmt.Println(markdown)
}
