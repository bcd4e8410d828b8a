// Package dataset persists goldens as JSON, JSONL, or CSV files.
//
// Writes are atomic (temp file + rename) and guarded by an exclusive lock
// on a sidecar .lock file; loads take a shared lock. Concurrent evalforge
// processes can therefore share a dataset file safely.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"

	"github.com/evalforge/evalforge/internal/synthesis"
)

// contextSeparator joins context segments into one CSV cell. Segments
// containing the separator will not round-trip.
const contextSeparator = "|"

var csvHeader = []string{"input", "expected_output", "context", "source_file"}

// Dataset is an ordered collection of goldens.
type Dataset struct {
	Goldens []synthesis.Golden `json:"goldens"`
}

// New creates a dataset from goldens.
func New(goldens ...synthesis.Golden) *Dataset {
	return &Dataset{Goldens: goldens}
}

// Add appends goldens to the dataset.
func (d *Dataset) Add(goldens ...synthesis.Golden) {
	d.Goldens = append(d.Goldens, goldens...)
}

// Len returns the number of goldens.
func (d *Dataset) Len() int {
	return len(d.Goldens)
}

// Save writes the dataset in the format implied by the file extension:
// .json, .jsonl, or .csv.
func (d *Dataset) Save(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return d.SaveJSON(path)
	case ".jsonl":
		return d.SaveJSONL(path)
	case ".csv":
		return d.SaveCSV(path)
	default:
		return fmt.Errorf("unsupported dataset extension %q (want .json, .jsonl, or .csv)", filepath.Ext(path))
	}
}

// Load reads a dataset in the format implied by the file extension.
func Load(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".jsonl":
		return LoadJSONL(path)
	case ".csv":
		return LoadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported dataset extension %q (want .json, .jsonl, or .csv)", filepath.Ext(path))
	}
}

// SaveJSON writes the dataset as a single indented JSON document.
func (d *Dataset) SaveJSON(path string) error {
	return saveLocked(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	})
}

// LoadJSON reads a dataset written by SaveJSON.
func LoadJSON(path string) (*Dataset, error) {
	var d Dataset
	err := loadLocked(path, func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(&d); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveJSONL writes one golden per line.
func (d *Dataset) SaveJSONL(path string) error {
	return saveLocked(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for i := range d.Goldens {
			if err := enc.Encode(&d.Goldens[i]); err != nil {
				return fmt.Errorf("encoding golden %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// LoadJSONL reads a dataset written by SaveJSONL. Blank lines are skipped.
func LoadJSONL(path string) (*Dataset, error) {
	d := &Dataset{}
	err := loadLocked(path, func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		// Goldens carry whole document contexts; lines can be large.
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var golden synthesis.Golden
			if err := json.Unmarshal([]byte(text), &golden); err != nil {
				return fmt.Errorf("parsing %s line %d: %w", path, line, err)
			}
			d.Goldens = append(d.Goldens, golden)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SaveCSV writes the dataset as CSV with a header row. Context segments are
// joined with "|"; golden metadata is not representable in CSV and is
// dropped.
func (d *Dataset) SaveCSV(path string) error {
	return saveLocked(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		for i, golden := range d.Goldens {
			record := []string{
				golden.Input,
				golden.ExpectedOutput,
				strings.Join(golden.Context, contextSeparator),
				golden.SourceFile,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("writing golden %d: %w", i+1, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// LoadCSV reads a dataset written by SaveCSV.
func LoadCSV(path string) (*Dataset, error) {
	d := &Dataset{}
	err := loadLocked(path, func(r io.Reader) error {
		cr := csv.NewReader(r)

		header, err := cr.Read()
		if err != nil {
			return fmt.Errorf("reading %s header: %w", path, err)
		}
		if !slices.Equal(header, csvHeader) {
			return fmt.Errorf("unexpected header %v in %s (want %v)", header, path, csvHeader)
		}

		for {
			record, err := cr.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			golden := synthesis.Golden{
				Input:          record[0],
				ExpectedOutput: record[1],
				SourceFile:     record[3],
			}
			if record[2] != "" {
				golden.Context = strings.Split(record[2], contextSeparator)
			}
			d.Goldens = append(d.Goldens, golden)
		}
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// saveLocked writes atomically under an exclusive sidecar lock: the content
// goes to a temp file in the target directory, then rename replaces the
// destination so readers never observe a partial file.
func saveLocked(path string, write func(io.Writer) error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// loadLocked opens the file under a shared sidecar lock.
func loadLocked(path string, read func(io.Reader) error) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.Open(path) // #nosec G304 -- caller-chosen dataset path
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	return read(f)
}
