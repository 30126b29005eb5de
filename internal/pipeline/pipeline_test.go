package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"lakereorg/internal/config"
	"lakereorg/internal/duck"
	"lakereorg/internal/timeseries"
)

func TestRunsPhase(t *testing.T) {
	cases := []struct {
		selection, phase string
		want             bool
	}{
		{"all", "reorg", true},
		{"all", "delta", true},
		{"all", "optimize", true},
		{"reorg", "reorg", true},
		{"reorg", "delta", false},
		{"delta", "delta", true},
		{"delta", "optimize", false},
		{"optimize", "optimize", true},
	}
	for _, c := range cases {
		if got := runsPhase(c.selection, c.phase); got != c.want {
			t.Errorf("runsPhase(%q, %q) = %v, want %v", c.selection, c.phase, got, c.want)
		}
	}
}

func writeParquet(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := parquet.NewGenericWriter[timeseries.Row](f)
	rows := timeseries.Rows("32TNR", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2)
	if _, err := w.Write(rows); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHasParquetFiles(t *testing.T) {
	dir := t.TempDir()
	if hasParquetFiles(dir) {
		t.Fatal("empty directory reported parquet files")
	}
	if hasParquetFiles(filepath.Join(dir, "missing")) {
		t.Fatal("missing directory reported parquet files")
	}

	writeParquet(t, filepath.Join(dir, "utm_tile=A", "year=2024", "date=2024-01-01", "x.parquet"))
	if !hasParquetFiles(dir) {
		t.Fatal("nested parquet file not found")
	}
}

// TestRunFailsWhenValidationCannotStart covers the terminal path: a run whose
// validation stage cannot even open the engine must end failed with a non-nil
// error, never completed with an empty validation result.
func TestRunFailsWhenValidationCannotStart(t *testing.T) {
	orig := openEngine
	openEngine = func(ctx context.Context) (*duck.DB, error) {
		return nil, errors.New("engine unavailable")
	}
	defer func() { openEngine = orig }()

	cfg := config.Default()
	cfg.Job = "novalidate"
	cfg.ValidateOnly = true
	cfg.LedgerPath = ""

	ctx := context.Background()
	r := New(ctx, cfg)
	defer r.Close()

	res, err := r.Run(ctx)
	if err == nil {
		t.Fatal("run reported success without a working engine")
	}
	if res.Status != "failed" {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	found := false
	for _, stage := range res.StagesFailed {
		if stage == "validate" {
			found = true
		}
	}
	if !found {
		t.Fatalf("failed stages = %v, missing validate", res.StagesFailed)
	}
}
