package reorg

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/parquet-go/parquet-go"

	"lakereorg/internal/shard"
	"lakereorg/internal/stats"
)

// ShardFile describes one valid shard output file.
type ShardFile struct {
	ChunkName string // "parcel_chunk=NN"
	Path      string
	RowCount  int64
}

// ValidateShardFile checks that a shard file exists, parses as parquet, and
// holds at least one row. It returns the row count from the parquet footer
// and, when invalid, a short reason.
func ValidateShardFile(path string) (bool, int64, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, "file does not exist"
	}
	f, err := os.Open(path)
	if err != nil {
		return false, 0, fmt.Sprintf("unreadable: %v", err)
	}
	defer f.Close()

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return false, 0, fmt.Sprintf("corrupted: %v", err)
	}
	rows := pf.NumRows()
	if rows == 0 {
		return false, 0, "file is empty"
	}
	return true, rows, ""
}

// checkExisting decides whether an already-present shard file lets us skip
// the shard. Invalid files are recreated; force always recreates.
func checkExisting(path, id string, force bool) (bool, stats.Stats) {
	if force {
		return false, stats.Stats{}
	}
	if _, err := os.Stat(path); err != nil {
		return false, stats.Stats{}
	}

	valid, rows, reason := ValidateShardFile(path)
	if valid {
		log.Printf("reorg: skipping existing chunk %s (%s rows)", id, humanize.Comma(rows))
		return true, stats.Stats{Skipped: 1}
	}
	log.Printf("reorg: existing chunk %s is %s, recreating", id, reason)
	return false, stats.Stats{}
}

// verifyCreation inspects the freshly written shard file and translates the
// outcome into a stats update.
func verifyCreation(path, id string) stats.Stats {
	valid, rows, reason := ValidateShardFile(path)
	switch {
	case valid:
		log.Printf("reorg: created %s with %s rows", filepath.Base(filepath.Dir(path))+"/"+filepath.Base(path), humanize.Comma(rows))
		return stats.Stats{Created: 1}
	case reason == "file does not exist":
		log.Printf("reorg: failed to create chunk %s", id)
		return stats.Stats{Failed: 1}
	default:
		log.Printf("reorg: created chunk %s but it is %s", id, reason)
		return stats.Stats{Failed: 1}
	}
}

// ValidShards lists the valid shard files under outputDir in shard order.
func ValidShards(outputDir string) []ShardFile {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}
	var out []ShardFile
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), shard.Prefix) {
			continue
		}
		path := filepath.Join(outputDir, e.Name(), "data.parquet")
		if valid, rows, _ := ValidateShardFile(path); valid {
			out = append(out, ShardFile{ChunkName: e.Name(), Path: path, RowCount: rows})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkName < out[j].ChunkName })
	return out
}

// ChunkDirs lists parcel_chunk=* directories under dir, sorted by name.
func ChunkDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), shard.Prefix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
