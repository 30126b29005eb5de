package deltalake

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	delta "github.com/rivian/delta-go"

	"lakereorg/internal/duck"
	"lakereorg/internal/reorg"
	"lakereorg/internal/shard"
	"lakereorg/internal/stats"
	"lakereorg/internal/timeseries"
)

// ConvertOptions configures a phase 2 run.
type ConvertOptions struct {
	// InputDir is the organized tree of parcel_chunk=NN directories.
	InputDir string
	// DeltaDir is the delta root; the table lives at DeltaDir/parcel_data.
	DeltaDir string
	// DryRun lists the work without writing.
	DryRun bool
	// Force rewrites every shard; the first one replaces the table.
	Force bool
}

// writeMode decides how a shard lands in the table. The first shard of a run
// replaces the table when the table is absent (or force is set) so that a
// fresh conversion never appends onto stale data; every other write appends.
func writeMode(firstChunk, tableExists, force bool) string {
	if firstChunk && (!tableExists || force) {
		return "overwrite"
	}
	return "append"
}

// shouldSkipChunk reports whether a shard's partition is already present in
// the table snapshot and can be skipped.
func shouldSkipChunk(state TableState, id string, force bool) bool {
	return !force && state.Exists && state.HasPartition(id)
}

// Convert runs phase 2: each valid shard file is deduplicated on
// (parcel_id, date), tagged with its parcel_chunk partition, and committed to
// the partitioned table as one data file. Shards whose partition already
// exists in the table are skipped unless force is set. Per-shard failures
// are counted and the loop continues.
func Convert(ctx context.Context, db *duck.DB, opts ConvertOptions) (stats.Stats, error) {
	log.Printf("delta: input=%s table=%s", opts.InputDir, TablePath(opts.DeltaDir))
	if opts.Force {
		log.Printf("delta: force mode, all chunks will be rewritten")
	}

	if _, err := os.Stat(opts.InputDir); err != nil {
		return stats.Stats{}, fmt.Errorf("delta: organized directory %s does not exist, run the reorg phase first", opts.InputDir)
	}
	chunks, err := reorg.ChunkDirs(opts.InputDir)
	if err != nil {
		return stats.Stats{}, fmt.Errorf("delta: scan %s: %w", opts.InputDir, err)
	}
	if len(chunks) == 0 {
		return stats.Stats{}, fmt.Errorf("delta: no parcel_chunk directories found in %s", opts.InputDir)
	}
	log.Printf("delta: found %d chunks to convert", len(chunks))

	if opts.DryRun {
		for i, name := range chunks {
			if i == 5 {
				log.Printf("delta: ... and %d more chunks", len(chunks)-5)
				break
			}
			mark := "missing data file"
			if _, err := os.Stat(filepath.Join(opts.InputDir, name, "data.parquet")); err == nil {
				mark = "ready"
			}
			log.Printf("delta: would convert %s (%s)", name, mark)
		}
		return stats.Stats{Total: len(chunks)}, nil
	}

	if err := os.MkdirAll(opts.DeltaDir, 0o755); err != nil {
		return stats.Stats{}, err
	}
	if err := db.EnsureDelta(ctx); err != nil {
		return stats.Stats{}, err
	}

	tablePath := TablePath(opts.DeltaDir)
	state := SnapshotState(tablePath)
	if state.Exists {
		log.Printf("delta: existing table at version %d with %d files, %d partitions",
			state.Version, state.FileCount, len(state.Partitions))
	} else {
		log.Printf("delta: no existing table, first chunk will create it")
	}

	st := stats.Stats{Total: len(chunks)}
	firstChunk := true

	for _, name := range chunks {
		id, ok := shard.ParsePartition(name)
		if !ok {
			log.Printf("delta: skipping unrecognized directory %s", name)
			st.Merge(stats.Stats{Failed: 1})
			continue
		}
		dataFile := filepath.Join(opts.InputDir, name, "data.parquet")
		if _, err := os.Stat(dataFile); err != nil {
			log.Printf("delta: chunk %s has no data file", id)
			st.Merge(stats.Stats{Failed: 1})
			continue
		}

		if shouldSkipChunk(state, id, opts.Force) {
			log.Printf("delta: skipping chunk %s, partition already in table", id)
			st.Merge(stats.Stats{Skipped: 1})
			continue
		}

		mode := writeMode(firstChunk, state.Exists, opts.Force)
		firstChunk = false

		rows, err := writeChunk(ctx, db, tablePath, dataFile, id, mode)
		if err != nil {
			log.Printf("delta: failed to convert chunk %s: %v", id, err)
			st.Merge(stats.Stats{Failed: 1})
			continue
		}
		log.Printf("delta: wrote chunk %s with %s deduplicated rows (%s)",
			id, humanize.Comma(rows), mode)
		st.Merge(stats.Stats{Processed: 1})
	}

	if st.Processed > 0 {
		if final := SnapshotState(tablePath); final.Exists {
			log.Printf("delta: table now at version %d with %d files across %d partitions",
				final.Version, final.FileCount, len(final.Partitions))
		}
	}
	log.Printf("delta: complete %s", st)
	return st, nil
}

// writeChunk deduplicates one shard file and commits it to the table as a
// single partition data file. It returns the number of rows written.
func writeChunk(ctx context.Context, db *duck.DB, tablePath, dataFile, id, mode string) (int64, error) {
	tbl, err := prepareTable(tablePath, mode)
	if err != nil {
		return 0, err
	}

	relPath := path.Join(shard.FormatPartition(id), "part-"+uuid.NewString()+".parquet")
	destFile := filepath.Join(tablePath, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return 0, err
	}

	// One row per (parcel_id, date); raw tiles overlap so duplicates are
	// expected. The partition column is carried by the table metadata, not
	// the data file.
	query := fmt.Sprintf(`
		COPY (
			SELECT DISTINCT ON (parcel_id, date) %s
			FROM read_parquet(%s)
			ORDER BY parcel_id, date
		) TO %s (FORMAT PARQUET)`,
		strings.Join(timeseries.Columns, ", "),
		duck.Lit(dataFile), duck.Lit(destFile))
	if err := db.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("dedup write: %w", err)
	}

	valid, rows, reason := reorg.ValidateShardFile(destFile)
	if !valid {
		os.Remove(destFile)
		return 0, fmt.Errorf("written file is %s", reason)
	}
	info, err := os.Stat(destFile)
	if err != nil {
		return 0, err
	}

	version, err := commitAdd(tbl, relPath, id, info.Size(), rows)
	if err != nil {
		os.Remove(destFile)
		return 0, fmt.Errorf("commit: %w", err)
	}
	log.Printf("delta: committed %s at version %d", relPath, version)

	// Re-read the partition through the table log. A commit that landed
	// without its file being visible surfaces here, not in the later
	// cross-validation.
	got, err := db.Int64(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM delta_scan(%s) WHERE %s = %s",
		duck.Lit(tablePath), PartitionColumn, duck.Lit(id)))
	if err != nil {
		return 0, fmt.Errorf("post-commit scan of partition %s: %w", id, err)
	}
	if got != rows {
		return 0, fmt.Errorf("post-commit scan of partition %s returned %d rows, want %d", id, got, rows)
	}
	return rows, nil
}

// prepareTable returns the table ready to accept a commit. Overwrite mode
// recreates the table from scratch; append mode loads the existing log.
func prepareTable(tablePath, mode string) (*delta.Table, error) {
	if mode == "overwrite" {
		return createTable(tablePath)
	}
	tbl, err := loadTable(tablePath)
	if err != nil {
		return nil, fmt.Errorf("load table for append: %w", err)
	}
	return tbl, nil
}
