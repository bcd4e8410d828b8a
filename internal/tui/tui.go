// Package tui provides the Bubble Tea progress interface for long
// synthesis and benchmark runs: a spinner, a progress bar once totals
// are known, and a bounded log of recent pipeline events.
//
// Run is the single entry point. It executes a WorkFunc and shows the
// interactive UI when stdout is a terminal; otherwise it degrades to
// plain log lines so redirected output stays readable.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"

	"github.com/evalforge/evalforge/internal/benchmark"
	"github.com/evalforge/evalforge/internal/synthesis"
)

// Event is one progress update shown in the UI.
type Event struct {
	Stage   string
	Message string
	Current int
	Total   int
}

// FromSynthesis converts a synthesis pipeline event.
func FromSynthesis(e synthesis.Event) Event {
	return Event{
		Stage:   string(e.Stage),
		Message: e.Message,
		Current: e.Current,
		Total:   e.Total,
	}
}

// FromBenchmark converts a benchmark runner event.
func FromBenchmark(e benchmark.Event) Event {
	return Event{
		Stage:   "evaluate",
		Message: e.Message,
		Current: e.Current,
		Total:   e.Total,
	}
}

// WorkFunc is the long operation driven by the UI. It must honor ctx
// cancellation and may call emit from any goroutine.
type WorkFunc func(ctx context.Context, emit func(Event)) error

// Run executes work under a progress UI. Ctrl+C cancels the work's
// context and Run returns the work's error, context.Canceled included.
// When stdout is not a terminal the UI is skipped and events become
// logger lines instead.
func Run(ctx context.Context, title string, logger *slog.Logger, work WorkFunc) error {
	if logger == nil {
		logger = slog.Default()
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(ctx, logger, work)
	}

	// The work gets its own cancelable context so ctrl+c stops the
	// pipeline while the UI stays up to report the outcome. The
	// program itself still unwinds if the parent context dies.
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newModel(workCtx, cancel, title, work)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	final, err := program.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("progress UI exited: %w", err)
	}
	m, ok := final.(*Model)
	if !ok {
		return fmt.Errorf("progress UI returned unexpected model %T", final)
	}
	return m.err
}

// runPlain drives the work without a UI, one log line per event.
func runPlain(ctx context.Context, logger *slog.Logger, work WorkFunc) error {
	return work(ctx, func(e Event) {
		if e.Message == "" {
			return
		}
		if e.Total > 0 {
			logger.Info(e.Message, "stage", e.Stage, "progress", fmt.Sprintf("%d/%d", e.Current, e.Total))
			return
		}
		logger.Info(e.Message, "stage", e.Stage)
	})
}
