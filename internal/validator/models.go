// Package validator runs the read-only consistency checks: raw tree
// structure, organized chunk integrity, partitioned table integrity, and the
// cross-checks between organized chunks and table partitions.
//
// Mismatches are never errors. Every check collects human-readable issue
// strings into its result and keeps going; only the inability to inspect a
// target at all is reported through the result's Err field.
package validator

// RawFileDetail describes one parquet file in the raw tile/date tree.
type RawFileDetail struct {
	Path          string
	UTMTile       string
	Year          string
	DateValue     string
	TotalRecords  int64
	UniqueParcels int64
	DateRange     string
	Consistent    bool
}

// ParcelDistribution summarizes parcel counts across raw files.
type ParcelDistribution struct {
	MinPerFile int64
	MaxPerFile int64
	AvgPerFile int64
	Consistent bool
}

// RawResult reports raw tree validation.
type RawResult struct {
	Valid              bool
	TotalFiles         int
	FileDetails        []RawFileDetail
	TotalUniqueParcels int64
	TotalRecords       int64
	Issues             []string
	Distribution       *ParcelDistribution
	Err                string
}

// ChunkDetail describes one organized parcel chunk file.
type ChunkDetail struct {
	ChunkName        string
	TotalRecords     int64
	UniqueParcels    int64
	UniqueDates      int64
	DateRange        string
	DuplicateRecords int64
	// ExpectedDuplicates is parcels*dates*(tiles-1), reported only and
	// never asserted against.
	ExpectedDuplicates int64
}

// OrganizedResult reports organized chunk validation.
type OrganizedResult struct {
	Valid              bool
	TotalChunks        int
	ChunkDetails       []ChunkDetail
	TotalUniqueParcels int64
	TotalRecords       int64
	Issues             []string
	Err                string
}

// TableDetail describes one partition of the managed table.
type TableDetail struct {
	Partition     string
	Version       int64
	TotalRecords  int64
	UniqueParcels int64
	UniqueDates   int64
	DateRange     string
}

// DeltaResult reports partitioned table validation. Valid means no entity
// overlap across partitions; count mismatches and missing combinations are
// collected as issues but do not alone deny validity.
type DeltaResult struct {
	Valid               bool
	TotalPartitions     int
	TableDetails        []TableDetail
	TotalUniqueParcels  int64
	TotalRecords        int64
	MissingCombinations int64
	CompletenessPct     float64
	Issues              []string
	Err                 string
}

// Results bundles the per-target outcomes of one validation run.
type Results struct {
	Raw       *RawResult
	Organized *OrganizedResult
	Delta     *DeltaResult
}

// AllValid reports whether every target that ran came back valid.
func (r Results) AllValid() bool {
	if r.Raw != nil && !r.Raw.Valid {
		return false
	}
	if r.Organized != nil && !r.Organized.Valid {
		return false
	}
	if r.Delta != nil && !r.Delta.Valid {
		return false
	}
	return true
}
