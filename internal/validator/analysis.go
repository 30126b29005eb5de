package validator

import (
	"fmt"
	"sort"
)

// Completeness computes how much of the full parcel-by-date grid is covered
// by the observed distinct combinations. An empty grid reports zero missing
// and 0%.
func Completeness(uniqueParcels, uniqueDates, uniqueCombinations int64) (missing int64, pct float64) {
	expected := uniqueParcels * uniqueDates
	if expected == 0 {
		return 0, 0
	}
	return expected - uniqueCombinations, float64(uniqueCombinations) / float64(expected) * 100
}

// ExpectedDuplicates estimates how many duplicate records overlapping source
// tiles introduce: every parcel-date pair appears once per extra tile.
// Informational only.
func ExpectedDuplicates(uniqueParcels, uniqueDates, tiles int64) int64 {
	if tiles < 1 {
		return 0
	}
	return uniqueParcels * uniqueDates * (tiles - 1)
}

// overlapIssues walks the given groups in id order and reports every group
// whose parcel set intersects the union of the groups before it. One parcel
// in two groups violates the one-shard-per-parcel invariant.
func overlapIssues(ids []string, parcels map[string]map[string]struct{}, label string) []string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var issues []string
	seen := map[string]struct{}{}
	for _, id := range sorted {
		overlap := 0
		for p := range parcels[id] {
			if _, ok := seen[p]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			issues = append(issues, fmt.Sprintf("%s %s: parcel overlap with other %ss (%d parcels)",
				label, id, label, overlap))
		}
		for p := range parcels[id] {
			seen[p] = struct{}{}
		}
	}
	return issues
}

// compareParcelCounts diffs per-parcel observation counts between an
// organized chunk and its table partition. It returns the parcels missing
// from the table, the extras only in the table, and the parcels present in
// both with different counts, each sorted.
func compareParcelCounts(organized, table map[string]int64) (missing, extra, mismatched []string) {
	for p := range organized {
		if _, ok := table[p]; !ok {
			missing = append(missing, p)
		}
	}
	for p, tc := range table {
		oc, ok := organized[p]
		if !ok {
			extra = append(extra, p)
			continue
		}
		if oc != tc {
			mismatched = append(mismatched, p)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(mismatched)
	return missing, extra, mismatched
}

// setDiff returns the elements of a not present in b, sorted.
func setDiff(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
