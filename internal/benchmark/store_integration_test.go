//go:build integration
// +build integration

// Run with: go test -tags=integration ./internal/benchmark -v

package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/evalforge/evalforge/internal/metrics"
	"github.com/evalforge/evalforge/internal/testutil"
)

func TestRunStore_Lifecycle(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRunStore(db.Pool, discardLogger())
	if err != nil {
		t.Fatalf("NewRunStore() unexpected error: %v", err)
	}

	first := &Report{
		Run: Run{
			ID:         uuid.New(),
			Name:       "nightly",
			Collection: "docs",
			TopK:       3,
			CreatedAt:  time.Now().UTC().Add(-time.Hour),
		},
		Cases: []CaseResult{
			{
				Input:        "What does the alpha pump do?",
				ActualOutput: "It drives the primary cooling loop.",
				Results: []metrics.Result{
					{Name: "answer_relevancy", Score: 1.0, Threshold: 0.5, Passed: true, Reason: "Fully on point."},
					{Name: "contextual_recall", Score: 1.0, Threshold: 0.5, Passed: true},
				},
			},
			{
				Input:        "How often are filters swapped?",
				ActualOutput: "Every week.",
				Results: []metrics.Result{
					{Name: "answer_relevancy", Score: 1.0, Threshold: 0.5, Passed: true},
					{Name: "contextual_recall", Score: 0.0, Threshold: 0.5, Passed: false, Reason: "The answer contradicts the context."},
				},
			},
		},
	}
	if err := store.SaveReport(ctx, first); err != nil {
		t.Fatalf("SaveReport() unexpected error: %v", err)
	}

	second := &Report{
		Run: Run{
			ID:         uuid.New(),
			Name:       "post-deploy",
			Collection: "docs",
			TopK:       5,
			CreatedAt:  time.Now().UTC(),
		},
		Cases: []CaseResult{
			{
				Input: "Anything?",
				Results: []metrics.Result{
					{Name: "answer_relevancy", Score: 0.5, Threshold: 0.5, Passed: true},
				},
			},
		},
	}
	if err := store.SaveReport(ctx, second); err != nil {
		t.Fatalf("SaveReport(second) unexpected error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() count = %d, want 2", len(runs))
	}
	if runs[0].ID != second.Run.ID || runs[1].ID != first.Run.ID {
		t.Errorf("ListRuns() order = [%s, %s], want newest first", runs[0].ID, runs[1].ID)
	}
	if runs[1].Name != "nightly" || runs[1].Collection != "docs" || runs[1].TopK != 3 {
		t.Errorf("ListRuns()[1] = %+v, want persisted run fields", runs[1])
	}
	if diff := runs[1].CreatedAt.Sub(first.Run.CreatedAt).Abs(); diff > time.Second {
		t.Errorf("CreatedAt drifted by %v across persistence", diff)
	}

	got, err := store.GetRun(ctx, first.Run.ID)
	if err != nil {
		t.Fatalf("GetRun() unexpected error: %v", err)
	}
	if got.Run.ID != first.Run.ID || got.Run.Name != "nightly" {
		t.Errorf("GetRun().Run = %+v, want saved run", got.Run)
	}
	if len(got.Cases) != 2 {
		t.Fatalf("GetRun() cases = %d, want 2", len(got.Cases))
	}
	for i, want := range first.Cases {
		c := got.Cases[i]
		if c.Input != want.Input {
			t.Errorf("cases[%d].Input = %q, want %q", i, c.Input, want.Input)
		}
		if len(c.Results) != len(want.Results) {
			t.Fatalf("cases[%d] results = %d, want %d", i, len(c.Results), len(want.Results))
		}
		for j, res := range c.Results {
			w := want.Results[j]
			if res.Name != w.Name || res.Score != w.Score || res.Passed != w.Passed || res.Reason != w.Reason {
				t.Errorf("cases[%d].Results[%d] = %+v, want %+v", i, j, res, w)
			}
		}
	}
	// Transcripts are not persisted, only scores and reasons.
	if got.Cases[0].ActualOutput != "" || got.Cases[0].RetrievalContext != nil {
		t.Errorf("cases[0] carries transcript data %+v, want scores only", got.Cases[0])
	}

	if len(got.Summaries) != 2 {
		t.Fatalf("GetRun() summaries = %d, want 2", len(got.Summaries))
	}
	if s := got.Summaries[0]; s.Metric != "answer_relevancy" || s.Mean != 1.0 || s.Passed != 2 || s.Total != 2 {
		t.Errorf("summaries[0] = %+v, want answer_relevancy 2/2", s)
	}
	if s := got.Summaries[1]; s.Metric != "contextual_recall" || s.Mean != 0.5 || s.Passed != 1 || s.Total != 2 {
		t.Errorf("summaries[1] = %+v, want contextual_recall 1/2", s)
	}

	if _, err := store.GetRun(ctx, uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(unknown) = %v, want ErrRunNotFound", err)
	}
}

// Two consecutive cases can share an input, for example when the same
// golden appears twice in a dataset. Regrouping falls back to metric
// repetition to find the case boundary.
func TestRunStore_RegroupsDuplicateInputs(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewRunStore(db.Pool, discardLogger())
	if err != nil {
		t.Fatalf("NewRunStore() unexpected error: %v", err)
	}

	report := &Report{
		Run: Run{ID: uuid.New(), Name: "dupes", Collection: "docs", TopK: 3, CreatedAt: time.Now().UTC()},
		Cases: []CaseResult{
			{Input: "Same question?", Results: []metrics.Result{{Name: "answer_relevancy", Score: 1.0, Passed: true}}},
			{Input: "Same question?", Results: []metrics.Result{{Name: "answer_relevancy", Score: 0.0, Passed: false}}},
		},
	}
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() unexpected error: %v", err)
	}

	got, err := store.GetRun(ctx, report.Run.ID)
	if err != nil {
		t.Fatalf("GetRun() unexpected error: %v", err)
	}
	if len(got.Cases) != 2 {
		t.Fatalf("GetRun() cases = %d, want 2 (one per saved case)", len(got.Cases))
	}
	if got.Cases[0].Results[0].Score != 1.0 || got.Cases[1].Results[0].Score != 0.0 {
		t.Errorf("cases regrouped as %+v, want scores 1.0 then 0.0", got.Cases)
	}
}
