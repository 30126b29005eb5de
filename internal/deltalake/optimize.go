package deltalake

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	delta "github.com/rivian/delta-go"

	"lakereorg/internal/duck"
	"lakereorg/internal/reorg"
	"lakereorg/internal/shard"
	"lakereorg/internal/stats"
)

// OptimizeOptions configures a phase 3 run.
type OptimizeOptions struct {
	// DeltaDir is the delta root holding the parcel_data table.
	DeltaDir string
	// DryRun reports the table state without compacting.
	DryRun bool
}

// Optimize runs phase 3: within each partition, active data files are merged
// into one compacted file and swapped in with a single remove+add commit.
// Partitions that already hold one file are left alone. A missing table is
// reported, not fatal; a failing table counts as failed.
func Optimize(ctx context.Context, db *duck.DB, opts OptimizeOptions) (stats.Stats, error) {
	tablePath := TablePath(opts.DeltaDir)
	if _, err := os.Stat(opts.DeltaDir); err != nil {
		log.Printf("optimize: delta directory %s does not exist, nothing to do", opts.DeltaDir)
		return stats.Stats{}, nil
	}

	state := SnapshotState(tablePath)
	if !state.Exists {
		log.Printf("optimize: no table at %s, nothing to do", tablePath)
		return stats.Stats{}, nil
	}
	log.Printf("optimize: table at version %d with %d files across %d partitions",
		state.Version, state.FileCount, len(state.Partitions))

	if opts.DryRun {
		log.Printf("optimize: dry run, table would be compacted")
		return stats.Stats{Total: 1}, nil
	}

	st := stats.Stats{Total: 1}
	if err := compactTable(ctx, db, tablePath); err != nil {
		log.Printf("optimize: failed to compact %s: %v", tablePath, err)
		st.Merge(stats.Stats{Failed: 1})
		return st, nil
	}
	st.Merge(stats.Stats{Processed: 1})

	if final := SnapshotState(tablePath); final.Exists {
		log.Printf("optimize: table now at version %d with %d files", final.Version, final.FileCount)
	}
	log.Printf("optimize: complete %s", st)
	return st, nil
}

// compactTable merges multi-file partitions. All swaps land in one commit so
// readers see either the old layout or the new one.
func compactTable(ctx context.Context, db *duck.DB, tablePath string) error {
	tbl, err := loadTable(tablePath)
	if err != nil {
		return err
	}

	byPartition := map[string][]string{}
	for p := range tbl.State.Files {
		id, ok := shard.PartitionFromPath(p)
		if !ok {
			continue
		}
		byPartition[id] = append(byPartition[id], p)
	}
	ids := make([]string, 0, len(byPartition))
	for id := range byPartition {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx := tbl.CreateTransaction(delta.NewTransactionOptions())
	compacted := 0
	now := time.Now().UnixMilli()

	for _, id := range ids {
		paths := byPartition[id]
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)

		sources := make([]string, len(paths))
		for i, p := range paths {
			sources[i] = duck.Lit(filepath.Join(tablePath, filepath.FromSlash(p)))
		}
		relPath := path.Join(shard.FormatPartition(id), "part-"+uuid.NewString()+".parquet")
		destFile := filepath.Join(tablePath, filepath.FromSlash(relPath))

		query := fmt.Sprintf(`
			COPY (
				SELECT * FROM read_parquet([%s])
				ORDER BY parcel_id, date
			) TO %s (FORMAT PARQUET)`,
			strings.Join(sources, ", "), duck.Lit(destFile))
		if err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("merge partition %s: %w", id, err)
		}
		valid, rows, reason := reorg.ValidateShardFile(destFile)
		if !valid {
			os.Remove(destFile)
			return fmt.Errorf("merged file for partition %s is %s", id, reason)
		}
		info, err := os.Stat(destFile)
		if err != nil {
			return err
		}

		for _, p := range paths {
			partitionValues := map[string]string{PartitionColumn: id}
			tx.AddAction(delta.Remove{
				Path:                 p,
				DeletionTimestamp:    &now,
				DataChange:           true,
				ExtendedFileMetadata: true,
				PartitionValues:      &partitionValues,
			})
		}
		tx.AddAction(delta.Add{
			Path:             relPath,
			Size:             info.Size(),
			PartitionValues:  map[string]string{PartitionColumn: id},
			ModificationTime: now,
			DataChange:       true,
			Stats:            fmt.Sprintf(`{"numRecords":%d}`, rows),
		})
		log.Printf("optimize: partition %s merged %d files into one (%s rows)",
			id, len(paths), humanize.Comma(rows))
		compacted++
	}

	if compacted == 0 {
		log.Printf("optimize: no multi-file partitions, nothing to compact")
		return nil
	}
	version, err := tx.Commit()
	if err != nil {
		return fmt.Errorf("commit compaction: %w", err)
	}
	log.Printf("optimize: compacted %d partitions at version %d", compacted, version)
	return nil
}
