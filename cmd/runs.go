package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evalforge/evalforge/internal/app"
	"github.com/evalforge/evalforge/internal/benchmark"
	"github.com/evalforge/evalforge/internal/config"
)

// NewRunsCmd creates the runs command group.
func NewRunsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored evaluation runs",
	}
	cmd.AddCommand(newRunsListCmd(root), newRunsShowCmd(root))
	return cmd
}

func newRunsListCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd, root, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	return cmd
}

func newRunsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, root, args[0])
		},
	}
}

func runRunsList(cmd *cobra.Command, root *rootOptions, limit int) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openRunStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOLLECTION\tTOP-K\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			run.ID, run.Name, run.Collection, run.TopK,
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, root *rootOptions, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", rawID, err)
	}

	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := openRunStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

// openRunStore connects to Postgres without the AI runtime; the runs
// commands only read stored reports and need no model or embedder.
func openRunStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*benchmark.RunStore, func(), error) {
	pool, cleanup, err := app.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := benchmark.NewRunStore(pool, logger.With("component", "runs"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}
