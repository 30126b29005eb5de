package validator

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"lakereorg/internal/duck"
)

// ValidateRaw checks the raw tile/date tree: every file is profiled, the
// date inside each date=YYYY-MM-DD partition must match the partition name,
// and the global distinct parcel count must equal expectedTotalParcels.
func ValidateRaw(ctx context.Context, db *duck.DB, rawDir string, expectedTotalParcels int64, verbose bool) *RawResult {
	log.Printf("validate: raw directory %s, expecting %s parcels",
		rawDir, humanize.Comma(expectedTotalParcels))

	if _, err := os.Stat(rawDir); err != nil {
		return &RawResult{Err: "directory not found"}
	}
	files := listParquetFiles(rawDir)
	if len(files) == 0 {
		return &RawResult{Err: "no parquet files found"}
	}
	log.Printf("validate: found %d raw files", len(files))

	res := &RawResult{TotalFiles: len(files)}
	allParcels := map[string]struct{}{}
	var perFileCounts []int64

	for _, path := range files {
		rel, err := filepath.Rel(rawDir, path)
		if err != nil {
			rel = path
		}
		tile, year, dateValue := partitionParts(rel)

		st, err := statsFor(ctx, db, readParquet(path))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to read (%v)", rel, err))
			continue
		}

		consistent := dateValue == "" || st.DateRange == dateValue+" to "+dateValue
		if !consistent {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"%s: date inconsistency, partition=%s, data range=%s", rel, dateValue, st.DateRange))
		}

		parcels, err := distinctParcels(ctx, db, readParquet(path))
		if err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("%s: failed to list parcels (%v)", rel, err))
			continue
		}
		for p := range parcels {
			allParcels[p] = struct{}{}
		}

		res.FileDetails = append(res.FileDetails, RawFileDetail{
			Path:          rel,
			UTMTile:       tile,
			Year:          year,
			DateValue:     dateValue,
			TotalRecords:  st.TotalRecords,
			UniqueParcels: st.UniqueParcels,
			DateRange:     st.DateRange,
			Consistent:    consistent,
		})
		res.TotalRecords += st.TotalRecords
		perFileCounts = append(perFileCounts, st.UniqueParcels)

		if verbose {
			log.Printf("validate: raw %s parcels=%s records=%s consistent=%v",
				rel, humanize.Comma(st.UniqueParcels), humanize.Comma(st.TotalRecords), consistent)
		}
	}

	res.TotalUniqueParcels = int64(len(allParcels))
	if res.TotalUniqueParcels != expectedTotalParcels {
		res.Issues = append(res.Issues, fmt.Sprintf(
			"total unique parcels mismatch: expected %s, found %s",
			humanize.Comma(expectedTotalParcels), humanize.Comma(res.TotalUniqueParcels)))
	}

	if len(perFileCounts) > 0 {
		res.Distribution = distribution(perFileCounts)
		if !res.Distribution.Consistent {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"inconsistent parcel counts across files: min=%s, max=%s",
				humanize.Comma(res.Distribution.MinPerFile), humanize.Comma(res.Distribution.MaxPerFile)))
		}
	}

	res.Valid = len(res.Issues) == 0
	logSummary("raw", res.Valid, res.Issues)
	return res
}

func distribution(counts []int64) *ParcelDistribution {
	min, max, sum := counts[0], counts[0], int64(0)
	for _, c := range counts {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
		sum += c
	}
	return &ParcelDistribution{
		MinPerFile: min,
		MaxPerFile: max,
		AvgPerFile: sum / int64(len(counts)),
		Consistent: min == max,
	}
}

// partitionParts extracts utm_tile, year, and date values out of a relative
// path like utm_tile=32TNR/year=2024/date=2024-01-01/file.parquet. Missing
// segments come back empty.
func partitionParts(rel string) (tile, year, date string) {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch {
		case strings.HasPrefix(part, "utm_tile="):
			tile = strings.TrimPrefix(part, "utm_tile=")
		case strings.HasPrefix(part, "year="):
			year = strings.TrimPrefix(part, "year=")
		case strings.HasPrefix(part, "date="):
			date = strings.TrimPrefix(part, "date=")
		}
	}
	return tile, year, date
}

func listParquetFiles(root string) []string {
	var files []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func logSummary(target string, valid bool, issues []string) {
	if valid {
		log.Printf("validate: %s data is valid", target)
		return
	}
	log.Printf("validate: %s data has %d issues", target, len(issues))
	for _, issue := range issues {
		log.Printf("validate:   %s", issue)
	}
}
