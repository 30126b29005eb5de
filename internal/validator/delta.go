package validator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"lakereorg/internal/deltalake"
	"lakereorg/internal/duck"
	"lakereorg/internal/reorg"
	"lakereorg/internal/shard"
)

// ValidateDelta checks the partitioned table: global stats and completeness,
// per-partition profiles, parcel overlap between partitions, and (when
// organizedDir is set) the cross-checks against the organized chunks.
//
// Validity is defined by the absence of overlap: a parcel in two partitions
// breaks the one-shard-per-parcel invariant. Count mismatches, missing
// combinations, and cross-check differences are reported as issues but do
// not alone make the table invalid.
func ValidateDelta(ctx context.Context, db *duck.DB, deltaDir, organizedDir string, verbose bool) *DeltaResult {
	log.Printf("validate: delta directory %s", deltaDir)

	if _, err := os.Stat(deltaDir); err != nil {
		return &DeltaResult{Err: "directory not found"}
	}
	tablePath := deltalake.TablePath(deltaDir)
	state := deltalake.SnapshotState(tablePath)
	if !state.Exists {
		return &DeltaResult{Err: "no partitioned table found"}
	}

	partitions := make([]string, 0, len(state.Partitions))
	for id := range state.Partitions {
		partitions = append(partitions, id)
	}
	sort.Strings(partitions)
	log.Printf("validate: table version %d with %d files, partitions %v",
		state.Version, state.FileCount, partitions)

	if err := db.EnsureDelta(ctx); err != nil {
		return &DeltaResult{Err: err.Error()}
	}

	res := &DeltaResult{TotalPartitions: len(partitions)}

	st, err := statsFor(ctx, db, deltaScan(tablePath, ""))
	if err != nil {
		return &DeltaResult{Err: fmt.Sprintf("failed to scan table: %v", err)}
	}
	combos, err := distinctPairCount(ctx, db, deltaScan(tablePath, ""))
	if err != nil {
		return &DeltaResult{Err: fmt.Sprintf("failed to count combinations: %v", err)}
	}
	res.TotalRecords = st.TotalRecords
	res.TotalUniqueParcels = st.UniqueParcels
	res.MissingCombinations, res.CompletenessPct = Completeness(st.UniqueParcels, st.UniqueDates, combos)

	partitionParcels := map[string]map[string]struct{}{}
	for _, id := range partitions {
		pst, err := statsFor(ctx, db, deltaScan(tablePath, id))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("partition %s: failed to scan (%v)", id, err))
			continue
		}
		parcels, err := distinctParcels(ctx, db, deltaScan(tablePath, id))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("partition %s: failed to list parcels (%v)", id, err))
			continue
		}
		partitionParcels[id] = parcels

		res.TableDetails = append(res.TableDetails, TableDetail{
			Partition:     id,
			Version:       state.Version,
			TotalRecords:  pst.TotalRecords,
			UniqueParcels: pst.UniqueParcels,
			UniqueDates:   pst.UniqueDates,
			DateRange:     pst.DateRange,
		})
		if verbose {
			log.Printf("validate: partition %s parcels=%s dates=%d records=%s",
				id, humanize.Comma(pst.UniqueParcels), pst.UniqueDates, humanize.Comma(pst.TotalRecords))
		}
	}

	overlaps := overlapIssues(partitions, partitionParcels, "partition")
	res.Issues = append(res.Issues, overlaps...)

	if res.MissingCombinations > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf(
			"missing %s parcel-date combinations (%.1f%% complete)",
			humanize.Comma(res.MissingCombinations), res.CompletenessPct))
	}

	if organizedDir != "" {
		res.Issues = append(res.Issues, crossValidate(ctx, db, tablePath, partitions, organizedDir, verbose)...)
	}

	log.Printf("validate: delta totals parcels=%s records=%s completeness=%.1f%%",
		humanize.Comma(res.TotalUniqueParcels), humanize.Comma(res.TotalRecords), res.CompletenessPct)

	res.Valid = len(overlaps) == 0
	logSummary("delta", len(res.Issues) == 0, res.Issues)
	return res
}

// crossValidate compares each table partition with its organized chunk:
// deduplicated row counts must match, the partition sets must agree in both
// directions, and each parcel must carry the same number of observations on
// both sides.
func crossValidate(ctx context.Context, db *duck.DB, tablePath string, partitions []string, organizedDir string, verbose bool) []string {
	log.Printf("validate: cross-validating with organized data in %s", organizedDir)

	chunks, err := reorg.ChunkDirs(organizedDir)
	if err != nil || len(chunks) == 0 {
		log.Printf("validate: no organized chunks found for cross-validation")
		return nil
	}
	log.Printf("validate: comparing %d organized chunks against %d partitions", len(chunks), len(partitions))

	var issues []string
	for _, id := range partitions {
		chunkFile := filepath.Join(organizedDir, shard.FormatPartition(id), "data.parquet")
		if _, err := os.Stat(chunkFile); err != nil {
			issues = append(issues, fmt.Sprintf("partition %s: corresponding organized chunk not found", id))
			continue
		}
		issues = append(issues, crossValidatePartition(ctx, db, tablePath, id, chunkFile, verbose)...)
	}

	// The partition sets themselves must agree in both directions.
	chunkSet := map[string]struct{}{}
	for _, name := range chunks {
		if id, ok := shard.ParsePartition(name); ok {
			chunkSet[id] = struct{}{}
		}
	}
	tableSet := map[string]struct{}{}
	for _, id := range partitions {
		tableSet[id] = struct{}{}
	}
	if missing := setDiff(chunkSet, tableSet); len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("organized chunks missing in table: %v", missing))
	}
	if extra := setDiff(tableSet, chunkSet); len(extra) > 0 {
		issues = append(issues, fmt.Sprintf("table partitions not found in organized chunks: %v", extra))
	}
	return issues
}

func crossValidatePartition(ctx context.Context, db *duck.DB, tablePath, id, chunkFile string, verbose bool) []string {
	valid, rawCount, reason := reorg.ValidateShardFile(chunkFile)
	if !valid {
		return []string{fmt.Sprintf("partition %s: organized chunk is %s", id, reason)}
	}

	dedupCount, err := distinctPairCount(ctx, db, readParquet(chunkFile))
	if err != nil {
		return []string{fmt.Sprintf("partition %s: failed to compare with organized chunk (%v)", id, err)}
	}
	deltaCount, err := db.Int64(ctx, "SELECT COUNT(*) FROM "+deltaScan(tablePath, id))
	if err != nil {
		return []string{fmt.Sprintf("partition %s: failed to count table rows (%v)", id, err)}
	}

	if dedupCount != deltaCount {
		return []string{fmt.Sprintf(
			"partition %s: record count mismatch, organized (deduplicated): %s, table: %s",
			id, humanize.Comma(dedupCount), humanize.Comma(deltaCount))}
	}
	if verbose {
		pct := 0.0
		if rawCount > 0 {
			pct = float64(dedupCount) / float64(rawCount) * 100
		}
		log.Printf("validate: partition %s counts match (%s records, %.1f%% kept after dedup)",
			id, humanize.Comma(dedupCount), pct)
	}

	// Counts agree in aggregate; check them per parcel as well.
	orgCounts, err := parcelDateCounts(ctx, db, readParquet(chunkFile))
	if err != nil {
		return []string{fmt.Sprintf("partition %s: failed to count organized observations (%v)", id, err)}
	}
	tblCounts, err := parcelDateCounts(ctx, db, deltaScan(tablePath, id))
	if err != nil {
		return []string{fmt.Sprintf("partition %s: failed to count table observations (%v)", id, err)}
	}

	var issues []string
	missing, extra, mismatched := compareParcelCounts(orgCounts, tblCounts)
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("partition %s: %d parcels missing in table", id, len(missing)))
	}
	if len(extra) > 0 {
		issues = append(issues, fmt.Sprintf("partition %s: %d extra parcels in table", id, len(extra)))
	}
	if len(mismatched) > 0 {
		issues = append(issues, fmt.Sprintf(
			"partition %s: %d parcels have different observation counts", id, len(mismatched)))
	}
	return issues
}
