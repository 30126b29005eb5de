// Package reorg implements phase 1: repartitioning the raw tile/date tree
// into hash-assigned parcel chunk files.
//
// Each shard is extracted with one engine query:
//
//	COPY (SELECT <projection> FROM read_parquet('<glob>')
//	      WHERE shard_xxh3(parcel_id) % <total> = <index>
//	      ORDER BY parcel_id, date)
//	TO '<chunk>/data.parquet' (FORMAT PARQUET)
//
// Shards are processed strictly one after another; a failing shard is counted
// and the loop moves on. Existing valid chunk files are skipped unless force
// is set, which makes re-running the phase the retry mechanism.
package reorg

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"lakereorg/internal/duck"
	"lakereorg/internal/shard"
	"lakereorg/internal/stats"
	"lakereorg/internal/timeseries"
)

// Options configures a reorganize run.
type Options struct {
	// InputDir is the raw tree (recursively scanned for parquet files).
	InputDir string
	// OutputDir receives one parcel_chunk=NN directory per shard.
	OutputDir string
	// ChunkSize is the target number of parcels per shard.
	ChunkSize int
	// DryRun lists the work without writing.
	DryRun bool
	// Force recreates shards whose output already exists.
	Force bool
}

// Reorganize runs phase 1 and reports per-shard outcomes. Input-missing
// conditions (no input directory, no parquet files) fail fast; everything
// else is tolerated per shard.
func Reorganize(ctx context.Context, db *duck.DB, opts Options) (stats.Stats, error) {
	log.Printf("reorg: input=%s output=%s chunk_size=%s",
		opts.InputDir, opts.OutputDir, humanize.Comma(int64(opts.ChunkSize)))
	if opts.DryRun {
		log.Printf("reorg: dry run, no files will be created")
	}
	if opts.Force {
		log.Printf("reorg: force mode, existing chunks will be overwritten")
	}

	if _, err := os.Stat(opts.InputDir); err != nil {
		return stats.Stats{}, fmt.Errorf("reorg: input directory %s does not exist", opts.InputDir)
	}
	files, err := findParquetFiles(opts.InputDir)
	if err != nil {
		return stats.Stats{}, fmt.Errorf("reorg: scan %s: %w", opts.InputDir, err)
	}
	if len(files) == 0 {
		return stats.Stats{}, fmt.Errorf("reorg: no parquet files found in %s", opts.InputDir)
	}
	log.Printf("reorg: found %d parquet files to process", len(files))

	if opts.DryRun {
		for i, f := range files {
			if i == 5 {
				log.Printf("reorg: ... and %d more files", len(files)-5)
				break
			}
			log.Printf("reorg: would process %s", f)
		}
		return stats.Stats{}, nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return stats.Stats{}, err
	}

	// Shard count is estimated from one sample file's parcel population,
	// not a global census. Inherited heuristic; see Estimate.
	sampleParcels, err := db.Int64(ctx,
		"SELECT COUNT(DISTINCT parcel_id) FROM read_parquet(?)", files[0])
	if err != nil {
		return stats.Stats{}, fmt.Errorf("reorg: sample %s: %w", files[0], err)
	}
	totalShards, err := shard.Estimate(sampleParcels, int64(opts.ChunkSize))
	if err != nil {
		return stats.Stats{}, err
	}
	log.Printf("reorg: sample file has %s parcels, creating %d chunks",
		humanize.Comma(sampleParcels), totalShards)

	pattern := filepath.Join(opts.InputDir, "**", "*.parquet")
	st := stats.Stats{Total: totalShards}

	for index := 0; index < totalShards; index++ {
		id := shard.ID(index)
		log.Printf("reorg: processing chunk %s/%s", id, shard.ID(totalShards-1))

		chunkDir := filepath.Join(opts.OutputDir, shard.DirName(index))
		if err := os.MkdirAll(chunkDir, 0o755); err != nil {
			log.Printf("reorg: failed to create %s: %v", chunkDir, err)
			st.Merge(stats.Stats{Failed: 1})
			continue
		}
		chunkFile := filepath.Join(chunkDir, "data.parquet")

		if skip, update := checkExisting(chunkFile, id, opts.Force); skip {
			st.Merge(update)
			continue
		}

		query := fmt.Sprintf(`
			COPY (
				SELECT %s
				FROM read_parquet(%s)
				WHERE shard_xxh3(parcel_id) %% %d = %d
				ORDER BY parcel_id, date
			) TO %s (FORMAT PARQUET)`,
			strings.Join(timeseries.Columns, ", "),
			duck.Lit(pattern), totalShards, index, duck.Lit(chunkFile))

		if err := db.Exec(ctx, query); err != nil {
			log.Printf("reorg: failed to process chunk %s: %v", id, err)
			st.Merge(stats.Stats{Failed: 1})
			continue
		}
		st.Merge(verifyCreation(chunkFile, id))
	}

	log.Printf("reorg: complete %s", st)
	return st, nil
}

// Progress reports how many valid shard files already exist under outputDir.
func Progress(outputDir string) (int, []ShardFile) {
	shards := ValidShards(outputDir)
	return len(shards), shards
}

func findParquetFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
