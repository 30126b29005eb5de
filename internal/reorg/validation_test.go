package reorg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"lakereorg/internal/stats"
	"lakereorg/internal/timeseries"
)

func writeShard(t *testing.T, path string, rows []timeseries.Row) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := parquet.NewGenericWriter[timeseries.Row](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func sampleRows(n int) []timeseries.Row {
	return timeseries.Rows("32TNR", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), n)
}

func TestValidateShardFile(t *testing.T) {
	dir := t.TempDir()

	if valid, _, reason := ValidateShardFile(filepath.Join(dir, "missing.parquet")); valid || reason != "file does not exist" {
		t.Fatalf("missing file: valid=%v reason=%q", valid, reason)
	}

	path := filepath.Join(dir, "data.parquet")
	writeShard(t, path, sampleRows(7))
	valid, rows, reason := ValidateShardFile(path)
	if !valid || rows != 7 {
		t.Fatalf("valid file: valid=%v rows=%d reason=%q", valid, rows, reason)
	}

	// Garbage bytes must read as corrupted, not panic.
	bad := filepath.Join(dir, "bad.parquet")
	if err := os.WriteFile(bad, []byte("not parquet"), 0o644); err != nil {
		t.Fatal(err)
	}
	if valid, _, _ := ValidateShardFile(bad); valid {
		t.Fatal("garbage file reported valid")
	}

	empty := filepath.Join(dir, "empty.parquet")
	writeShard(t, empty, nil)
	if valid, _, reason := ValidateShardFile(empty); valid || reason != "file is empty" {
		t.Fatalf("empty file: valid=%v reason=%q", valid, reason)
	}
}

func TestCheckExistingSkipAndForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcel_chunk=00", "data.parquet")
	writeShard(t, path, sampleRows(3))

	skip, update := checkExisting(path, "00", false)
	if !skip || update != (stats.Stats{Skipped: 1}) {
		t.Fatalf("existing valid chunk not skipped: skip=%v update=%+v", skip, update)
	}

	// Force always reprocesses, even over a valid file.
	skip, update = checkExisting(path, "00", true)
	if skip || update != (stats.Stats{}) {
		t.Fatalf("force did not reprocess: skip=%v update=%+v", skip, update)
	}

	// Absent files are processed.
	skip, _ = checkExisting(filepath.Join(dir, "parcel_chunk=01", "data.parquet"), "01", false)
	if skip {
		t.Fatal("absent chunk was skipped")
	}
}

func TestVerifyCreation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcel_chunk=00", "data.parquet")
	writeShard(t, path, sampleRows(4))
	if got := verifyCreation(path, "00"); got != (stats.Stats{Created: 1}) {
		t.Fatalf("verifyCreation valid = %+v", got)
	}
	if got := verifyCreation(filepath.Join(dir, "nope.parquet"), "01"); got != (stats.Stats{Failed: 1}) {
		t.Fatalf("verifyCreation missing = %+v", got)
	}
}

func TestValidShardsAndChunkDirs(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "parcel_chunk=01", "data.parquet"), sampleRows(2))
	writeShard(t, filepath.Join(dir, "parcel_chunk=00", "data.parquet"), sampleRows(3))
	// Invalid: directory without data file.
	if err := os.MkdirAll(filepath.Join(dir, "parcel_chunk=02"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Unrelated directory is ignored.
	if err := os.MkdirAll(filepath.Join(dir, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}

	shards := ValidShards(dir)
	if len(shards) != 2 {
		t.Fatalf("ValidShards = %d entries, want 2", len(shards))
	}
	if shards[0].ChunkName != "parcel_chunk=00" || shards[0].RowCount != 3 {
		t.Fatalf("shards[0] = %+v", shards[0])
	}
	if shards[1].ChunkName != "parcel_chunk=01" || shards[1].RowCount != 2 {
		t.Fatalf("shards[1] = %+v", shards[1])
	}

	dirs, err := ChunkDirs(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"parcel_chunk=00", "parcel_chunk=01", "parcel_chunk=02"}
	if len(dirs) != len(want) {
		t.Fatalf("ChunkDirs = %v", dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Fatalf("ChunkDirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestProgress(t *testing.T) {
	dir := t.TempDir()
	if n, shards := Progress(dir); n != 0 || shards != nil {
		t.Fatalf("empty dir: n=%d shards=%v", n, shards)
	}
	if n, _ := Progress(filepath.Join(dir, "missing")); n != 0 {
		t.Fatalf("missing dir: n=%d", n)
	}

	writeShard(t, filepath.Join(dir, "parcel_chunk=00", "data.parquet"), sampleRows(3))
	// Directory without a data file does not count as progress.
	if err := os.MkdirAll(filepath.Join(dir, "parcel_chunk=01"), 0o755); err != nil {
		t.Fatal(err)
	}

	n, shards := Progress(dir)
	if n != 1 || len(shards) != 1 {
		t.Fatalf("Progress = %d, %v; want 1 valid shard", n, shards)
	}
	if shards[0].ChunkName != "parcel_chunk=00" || shards[0].RowCount != 3 {
		t.Fatalf("shards[0] = %+v", shards[0])
	}
}

func TestFindParquetFiles(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "utm_tile=A", "year=2024", "date=2024-01-01", "A_2024-01-01.parquet"), sampleRows(1))
	writeShard(t, filepath.Join(dir, "utm_tile=B", "year=2024", "date=2024-01-01", "B_2024-01-01.parquet"), sampleRows(1))
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := findParquetFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("found %d files, want 2: %v", len(files), files)
	}
}
