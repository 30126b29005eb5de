package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lakereorg/internal/config"
	"lakereorg/internal/deltalake"
	"lakereorg/internal/duck"
	"lakereorg/internal/reorg"
)

// TestEndToEnd drives the full pipeline over a tiny duplicated dataset:
// 3 parcels x 2 dates generated across 2 overlapping tiles. The shard file
// must carry 6 distinct (parcel, date) pairs, the table partition must hold
// exactly those 6 rows, and validation must come back clean.
//
// Requires the engine's delta extension, so it only runs when
// LAKEREORG_E2E is set.
func TestEndToEnd(t *testing.T) {
	if os.Getenv("LAKEREORG_E2E") == "" {
		t.Skip("skipping integration test: set LAKEREORG_E2E to run")
	}

	ctx := context.Background()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Job = "e2e"
	cfg.Dirs.Raw = filepath.Join(base, "raw")
	cfg.Dirs.Organized = filepath.Join(base, "organized")
	cfg.Dirs.Delta = filepath.Join(base, "delta")
	cfg.LedgerPath = filepath.Join(base, "runs.db")
	cfg.Generate.NumParcels = 3
	cfg.Generate.StartDate = "2024-01-01"
	cfg.Generate.EndDate = "2024-01-08"
	cfg.Generate.UTMTiles = "32TNR,32TPR"
	cfg.Reorg.ChunkSize = 100

	runner := New(ctx, cfg)
	defer runner.Close()

	res, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}
	if res.Status != "completed" {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if res.Reorg.Created != 1 || res.Reorg.Failed != 0 {
		t.Fatalf("reorg stats = %+v", res.Reorg)
	}
	if res.Delta.Processed != 1 || res.Delta.Failed != 0 {
		t.Fatalf("delta stats = %+v", res.Delta)
	}
	if !res.Validation.AllValid() {
		t.Fatalf("validation reported issues: %+v", res.Validation)
	}
	if res.Validation.Delta == nil || len(res.Validation.Delta.Issues) != 0 {
		t.Fatalf("delta validation issues: %+v", res.Validation.Delta)
	}

	// The shard file keeps the tile duplicates; only the distinct pairs
	// matter downstream.
	shards := reorg.ValidShards(cfg.Dirs.Organized)
	if len(shards) != 1 {
		t.Fatalf("valid shards = %d, want 1", len(shards))
	}
	if shards[0].RowCount != 12 { // 3 parcels x 2 dates x 2 tiles
		t.Fatalf("shard rows = %d, want 12", shards[0].RowCount)
	}

	db, err := duck.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	pairs, err := db.Int64(ctx, `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT parcel_id, date
			FROM read_parquet(?)
		)`, shards[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if pairs != 6 {
		t.Fatalf("distinct pairs in shard = %d, want 6", pairs)
	}

	if err := db.EnsureDelta(ctx); err != nil {
		t.Fatal(err)
	}
	tablePath := deltalake.TablePath(cfg.Dirs.Delta)
	tableRows, err := db.Int64(ctx,
		"SELECT COUNT(*) FROM delta_scan('"+tablePath+"')")
	if err != nil {
		t.Fatal(err)
	}
	if tableRows != 6 {
		t.Fatalf("table rows = %d, want 6 deduplicated rows", tableRows)
	}
	partRows, err := db.Int64(ctx,
		"SELECT COUNT(*) FROM delta_scan('"+tablePath+"') WHERE parcel_chunk = '00'")
	if err != nil {
		t.Fatal(err)
	}
	if partRows != 6 {
		t.Fatalf("partition 00 rows = %d, want 6", partRows)
	}

	state := deltalake.SnapshotState(tablePath)
	if !state.Exists || !state.HasPartition("00") {
		t.Fatalf("table state = %+v", state)
	}

	// Second run: everything already present, every stage short-circuits.
	res2, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, stage := range []string{"generate_skipped", "reorganize_skipped", "convert_skipped"} {
		found := false
		for _, got := range res2.StagesCompleted {
			if got == stage {
				found = true
			}
		}
		if !found {
			t.Fatalf("second run stages = %v, missing %s", res2.StagesCompleted, stage)
		}
	}
}
