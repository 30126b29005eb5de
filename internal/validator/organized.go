package validator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"lakereorg/internal/duck"
	"lakereorg/internal/reorg"
	"lakereorg/internal/shard"
)

// OrganizedOptions configures organized chunk validation.
type OrganizedOptions struct {
	OrganizedDir string
	// RawDir, when set and ExpectedDates is zero, is scanned to auto-detect
	// the number of distinct observation dates per parcel.
	RawDir string
	// ExpectedChunkSize is the target parcel count per chunk, reported only.
	ExpectedChunkSize int
	// ExpectedTiles feeds the informational duplicate estimate.
	ExpectedTiles int64
	// ExpectedDates is the dates-per-parcel requirement; zero means detect.
	ExpectedDates int64
	Verbose       bool
}

// ValidateOrganized checks every parcel chunk file: per-chunk stats and
// duplicate counts, parcels with incomplete date coverage, and parcel
// overlap between chunks.
func ValidateOrganized(ctx context.Context, db *duck.DB, opts OrganizedOptions) *OrganizedResult {
	log.Printf("validate: organized directory %s, chunk size %s, %d tiles",
		opts.OrganizedDir, humanize.Comma(int64(opts.ExpectedChunkSize)), opts.ExpectedTiles)

	expectedDates := opts.ExpectedDates
	if expectedDates == 0 && opts.RawDir != "" {
		expectedDates = detectExpectedDates(ctx, db, opts.RawDir)
	}
	if expectedDates > 0 {
		log.Printf("validate: expecting %d dates per parcel", expectedDates)
	}

	if _, err := os.Stat(opts.OrganizedDir); err != nil {
		return &OrganizedResult{Err: "directory not found"}
	}
	chunks, err := reorg.ChunkDirs(opts.OrganizedDir)
	if err != nil || len(chunks) == 0 {
		return &OrganizedResult{Err: "no chunks found"}
	}
	log.Printf("validate: found %d parcel chunks", len(chunks))

	res := &OrganizedResult{TotalChunks: len(chunks)}
	chunkParcels := map[string]map[string]struct{}{}
	var chunkIDs []string
	allParcels := map[string]struct{}{}

	for _, name := range chunks {
		dataFile := filepath.Join(opts.OrganizedDir, name, "data.parquet")
		if _, err := os.Stat(dataFile); err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("missing data.parquet in %s", name))
			continue
		}

		st, err := statsFor(ctx, db, readParquet(dataFile))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to read (%v)", name, err))
			continue
		}
		pairs, err := distinctPairCount(ctx, db, readParquet(dataFile))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to count pairs (%v)", name, err))
			continue
		}
		duplicates := st.TotalRecords - pairs

		res.ChunkDetails = append(res.ChunkDetails, ChunkDetail{
			ChunkName:          name,
			TotalRecords:       st.TotalRecords,
			UniqueParcels:      st.UniqueParcels,
			UniqueDates:        st.UniqueDates,
			DateRange:          st.DateRange,
			DuplicateRecords:   duplicates,
			ExpectedDuplicates: ExpectedDuplicates(st.UniqueParcels, st.UniqueDates, opts.ExpectedTiles),
		})
		res.TotalRecords += st.TotalRecords

		// Every parcel should carry the full date range.
		wantDates := expectedDates
		if wantDates == 0 {
			wantDates = st.UniqueDates
		}
		incomplete, err := db.Int64(ctx, fmt.Sprintf(`
			SELECT COUNT(*) FROM (
				SELECT parcel_id, COUNT(DISTINCT date) AS date_count
				FROM %s GROUP BY parcel_id
			) WHERE date_count != %d`, readParquet(dataFile), wantDates))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to check completeness (%v)", name, err))
			continue
		}
		if incomplete > 0 {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"%s: %d parcels missing dates (expected %d dates per parcel, found %d unique dates)",
				name, incomplete, wantDates, st.UniqueDates))
		}

		parcels, err := distinctParcels(ctx, db, readParquet(dataFile))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to list parcels (%v)", name, err))
			continue
		}
		if id, ok := shard.ParsePartition(name); ok {
			chunkIDs = append(chunkIDs, id)
			chunkParcels[id] = parcels
		}
		for p := range parcels {
			allParcels[p] = struct{}{}
		}

		if opts.Verbose {
			log.Printf("validate: %s parcels=%s dates=%d records=%s duplicates=%s",
				name, humanize.Comma(st.UniqueParcels), st.UniqueDates,
				humanize.Comma(st.TotalRecords), humanize.Comma(duplicates))
		}
	}

	res.Issues = append(res.Issues, overlapIssues(chunkIDs, chunkParcels, "chunk")...)
	res.TotalUniqueParcels = int64(len(allParcels))

	log.Printf("validate: organized totals parcels=%s records=%s",
		humanize.Comma(res.TotalUniqueParcels), humanize.Comma(res.TotalRecords))

	res.Valid = len(res.Issues) == 0
	logSummary("organized", res.Valid, res.Issues)
	return res
}

// detectExpectedDates counts distinct dates across the raw tree. Zero means
// detection failed; the caller falls back to per-chunk observed dates.
func detectExpectedDates(ctx context.Context, db *duck.DB, rawDir string) int64 {
	if _, err := os.Stat(rawDir); err != nil {
		log.Printf("validate: raw directory %s does not exist, skipping date detection", rawDir)
		return 0
	}
	pattern := filepath.Join(rawDir, "**", "*.parquet")
	n, err := db.Int64(ctx, "SELECT COUNT(DISTINCT date) FROM read_parquet("+duck.Lit(pattern)+")")
	if err != nil {
		log.Printf("validate: failed to detect dates from raw data: %v", err)
		return 0
	}
	log.Printf("validate: found %d unique dates in raw data", n)
	return n
}
