package validator

import (
	"database/sql"
	"testing"
	"time"
)

func TestPartitionParts(t *testing.T) {
	tile, year, date := partitionParts("utm_tile=32TNR/year=2024/date=2024-01-01/32TNR_2024-01-01.parquet")
	if tile != "32TNR" || year != "2024" || date != "2024-01-01" {
		t.Fatalf("got tile=%q year=%q date=%q", tile, year, date)
	}

	tile, year, date = partitionParts("flat.parquet")
	if tile != "" || year != "" || date != "" {
		t.Fatalf("flat path produced %q %q %q", tile, year, date)
	}
}

func TestDistribution(t *testing.T) {
	d := distribution([]int64{10, 20, 30})
	if d.MinPerFile != 10 || d.MaxPerFile != 30 || d.AvgPerFile != 20 {
		t.Fatalf("distribution = %+v", d)
	}
	if d.Consistent {
		t.Fatal("uneven counts reported consistent")
	}

	d = distribution([]int64{5, 5, 5})
	if !d.Consistent {
		t.Fatal("even counts reported inconsistent")
	}
}

func TestScanDateRange(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := scanDateRange(
		sql.NullTime{Time: day, Valid: true},
		sql.NullTime{Time: day.AddDate(0, 0, 14), Valid: true})
	if got != "2024-01-01 to 2024-01-15" {
		t.Fatalf("range = %q", got)
	}
	if got := scanDateRange(sql.NullTime{}, sql.NullTime{}); got != "empty" {
		t.Fatalf("null range = %q", got)
	}
}

func TestAllValid(t *testing.T) {
	var r Results
	if !r.AllValid() {
		t.Fatal("empty results must be valid")
	}
	r.Organized = &OrganizedResult{Valid: true}
	r.Delta = &DeltaResult{Valid: false}
	if r.AllValid() {
		t.Fatal("invalid delta result ignored")
	}
	r.Delta.Valid = true
	if !r.AllValid() {
		t.Fatal("all-valid results reported invalid")
	}
}
