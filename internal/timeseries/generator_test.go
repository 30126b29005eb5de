package timeseries

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func TestRowsDeterministic(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Rows("32TNR", date, 10)
	b := Rows("32TNR", date, 10)
	if len(a) != 10 || len(b) != 10 {
		t.Fatalf("row counts %d/%d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs between identical generations", i)
		}
	}

	// A different tile must not reproduce the same measurements.
	c := Rows("32TPR", date, 10)
	if a[0].NDVI == c[0].NDVI && a[0].Temperature == c[0].Temperature {
		t.Fatal("different tiles produced identical values")
	}
	// But the parcel id space is shared across tiles.
	if a[0].ParcelID != c[0].ParcelID {
		t.Fatalf("parcel ids diverge across tiles: %s vs %s", a[0].ParcelID, c[0].ParcelID)
	}
}

func TestParcelID(t *testing.T) {
	if got := ParcelID(0); got != "parcel_000000" {
		t.Fatalf("ParcelID(0) = %q", got)
	}
	if got := ParcelID(123456); got != "parcel_123456" {
		t.Fatalf("ParcelID(123456) = %q", got)
	}
}

func TestGenerateWritesPartitionedTree(t *testing.T) {
	dir := t.TempDir()
	n, err := Generate(context.Background(), Options{
		OutputDir:  dir,
		Tiles:      []string{"32TNR", "32TPR"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-08",
		NumParcels: 5,
		Workers:    2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 { // 2 tiles x 2 dates
		t.Fatalf("generated %d files, want 4", n)
	}

	path := filepath.Join(dir, "utm_tile=32TNR", "year=2024", "date=2024-01-01", "32TNR_2024-01-01.parquet")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected file missing: %v", err)
	}
	defer f.Close()

	rows, err := parquet.Read[Row](f, mustSize(t, f))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("read %d rows, want 5", len(rows))
	}
	if rows[0].ParcelID != "parcel_000000" {
		t.Fatalf("first parcel id = %q", rows[0].ParcelID)
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	_, err := Generate(context.Background(), Options{OutputDir: t.TempDir(), Tiles: []string{"A"}, NumParcels: 0})
	if err == nil {
		t.Fatal("expected error for zero parcels")
	}
	_, err = Generate(context.Background(), Options{OutputDir: t.TempDir(), NumParcels: 5, StartDate: "2024-01-01", EndDate: "2024-01-02"})
	if err == nil {
		t.Fatal("expected error for no tiles")
	}
}

func mustSize(t *testing.T, f *os.File) int64 {
	t.Helper()
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}
