package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/evalforge/evalforge/internal/synthesis"
)

func sampleGoldens() []synthesis.Golden {
	return []synthesis.Golden{
		{
			Input:          "What drives the primary cooling loop?",
			ExpectedOutput: "The alpha pump.",
			Context:        []string{"The alpha pump drives the primary cooling loop.", "Service is due every two months."},
			SourceFile:     "docs/reactor.txt",
		},
		{
			Input:          "When do billing exports run, and what do they include?",
			ExpectedOutput: "Nightly, including refunds and chargebacks.",
			Context:        []string{"Billing exports run nightly."},
			SourceFile:     "docs/billing.txt",
		},
	}
}

func TestDataset_AddLen(t *testing.T) {
	t.Parallel()

	d := New(sampleGoldens()...)
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	d.Add(synthesis.Golden{Input: "extra"})
	if d.Len() != 3 {
		t.Errorf("Len() after Add = %d, want 3", d.Len())
	}
}

func TestDataset_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.json")
	d := New(sampleGoldens()...)

	if err := d.SaveJSON(path); err != nil {
		t.Fatalf("SaveJSON() unexpected error: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() unexpected error: %v", err)
	}

	if diff := cmp.Diff(d.Goldens, got.Goldens); diff != "" {
		t.Errorf("goldens mismatch (-want +got):\n%s", diff)
	}
}

func TestDataset_JSONPreservesMetadataNumbers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.json")
	d := New(synthesis.Golden{
		Input:    "q",
		Metadata: map[string]any{"quality_score": 0.8},
	})

	if err := d.SaveJSON(path); err != nil {
		t.Fatalf("SaveJSON() unexpected error: %v", err)
	}
	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() unexpected error: %v", err)
	}

	if score := got.Goldens[0].Metadata["quality_score"]; score != 0.8 {
		t.Errorf("quality_score = %v, want 0.8", score)
	}
}

func TestDataset_JSONLRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.jsonl")
	d := New(sampleGoldens()...)

	if err := d.SaveJSONL(path); err != nil {
		t.Fatalf("SaveJSONL() unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	lines := strings.Count(string(data), "\n")
	if lines != 2 {
		t.Errorf("file has %d lines, want 2", lines)
	}

	got, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL() unexpected error: %v", err)
	}
	if diff := cmp.Diff(d.Goldens, got.Goldens); diff != "" {
		t.Errorf("goldens mismatch (-want +got):\n%s", diff)
	}
}

func TestDataset_JSONLSkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.jsonl")
	content := `{"input": "first"}

{"input": "second"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	got, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL() unexpected error: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("Len() = %d, want 2", got.Len())
	}
}

func TestDataset_CSVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.csv")
	d := New(
		synthesis.Golden{
			Input:          `Question with "quotes", commas, and such?`,
			ExpectedOutput: "An answer.",
			Context:        []string{"first segment", "second segment"},
			SourceFile:     "docs/a.txt",
		},
		synthesis.Golden{Input: "No context here."},
	)

	if err := d.SaveCSV(path); err != nil {
		t.Fatalf("SaveCSV() unexpected error: %v", err)
	}
	got, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() unexpected error: %v", err)
	}

	if diff := cmp.Diff(d.Goldens, got.Goldens); diff != "" {
		t.Errorf("goldens mismatch (-want +got):\n%s", diff)
	}
	if got.Goldens[1].Context != nil {
		t.Errorf("empty context loaded as %v, want nil", got.Goldens[1].Context)
	}
}

func TestDataset_CSVDropsMetadata(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "goldens.csv")
	d := New(synthesis.Golden{
		Input:    "q",
		Metadata: map[string]any{"quality_score": 0.8},
	})

	if err := d.SaveCSV(path); err != nil {
		t.Fatalf("SaveCSV() unexpected error: %v", err)
	}
	got, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() unexpected error: %v", err)
	}
	if got.Goldens[0].Metadata != nil {
		t.Errorf("Metadata = %v, want nil after CSV round trip", got.Goldens[0].Metadata)
	}
}

func TestDataset_CSVRejectsUnknownHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("question,answer\nq,a\n"), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	if _, err := LoadCSV(path); err == nil || !strings.Contains(err.Error(), "unexpected header") {
		t.Errorf("LoadCSV() error = %v, want unexpected header", err)
	}
}

func TestDataset_SaveDispatchesOnExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	d := New(sampleGoldens()...)

	for _, name := range []string{"d.json", "d.jsonl", "d.csv"} {
		path := filepath.Join(dir, name)
		if err := d.Save(path); err != nil {
			t.Fatalf("Save(%s) unexpected error: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) unexpected error: %v", name, err)
		}
		if got.Len() != d.Len() {
			t.Errorf("Load(%s).Len() = %d, want %d", name, got.Len(), d.Len())
		}
	}

	if err := d.Save(filepath.Join(dir, "d.txt")); err == nil {
		t.Error("Save(.txt) expected error")
	}
	if _, err := Load(filepath.Join(dir, "d.txt")); err == nil {
		t.Error("Load(.txt) expected error")
	}
}

func TestDataset_SaveReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "goldens.json")

	if err := New(synthesis.Golden{Input: "old"}).SaveJSON(path); err != nil {
		t.Fatalf("first SaveJSON() unexpected error: %v", err)
	}
	if err := New(synthesis.Golden{Input: "new"}).SaveJSON(path); err != nil {
		t.Fatalf("second SaveJSON() unexpected error: %v", err)
	}

	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() unexpected error: %v", err)
	}
	if got.Len() != 1 || got.Goldens[0].Input != "new" {
		t.Errorf("goldens = %+v, want the replacement", got.Goldens)
	}

	// No temp files may survive a completed save.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", entry.Name())
		}
	}
}

func TestDataset_LoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("LoadJSON() expected error for missing file")
	}
}
