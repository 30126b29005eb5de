// Package shard defines the stable assignment of parcels to chunk shards and
// the naming scheme shared by the organized directory layout and the delta
// table partition column.
//
// The assignment must behave identically whether it is evaluated in Go or
// inside a SQL predicate, so the same xxh3 hash backs both: IndexFor here and
// the shard_xxh3 scalar function registered on the query engine connection.
// Changing TotalShards invalidates every existing assignment; the pipeline
// therefore derives it once per dataset and reuses it across phases.
package shard

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Prefix is the directory and partition-column prefix for shard identifiers,
// e.g. "parcel_chunk=07".
const Prefix = "parcel_chunk="

// Hash returns the raw 64-bit xxh3 hash of a parcel id.
func Hash(parcelID string) uint64 {
	return xxh3.Hash([]byte(parcelID))
}

// IndexFor maps a parcel id onto one of totalShards shard indexes. The result
// is stable for a fixed totalShards: the same id always lands on the same
// shard.
func IndexFor(parcelID string, totalShards int) int {
	if totalShards <= 0 {
		return 0
	}
	return int(Hash(parcelID) % uint64(totalShards))
}

// Estimate computes the shard count from a sampled parcel count and the
// configured chunk size, rounding up. The sample comes from a single source
// file, not a global census; it can under- or over-shard relative to the true
// parcel population. That heuristic is inherited from the dataset's history
// and is kept as-is.
func Estimate(sampleParcels, chunkSize int64) (int, error) {
	if sampleParcels <= 0 {
		return 0, fmt.Errorf("shard: sample file contains no parcels, cannot size shards")
	}
	if chunkSize <= 0 {
		return 0, fmt.Errorf("shard: chunk size must be positive, got %d", chunkSize)
	}
	return int((sampleParcels + chunkSize - 1) / chunkSize), nil
}

// ID formats a shard index as its zero-padded partition identifier ("00",
// "01", ...).
func ID(index int) string {
	return fmt.Sprintf("%02d", index)
}

// DirName returns the on-disk directory name for a shard index, e.g.
// "parcel_chunk=03".
func DirName(index int) string {
	return Prefix + ID(index)
}

// FormatPartition turns a partition identifier back into the full partition
// name used in file paths and log lines.
func FormatPartition(id string) string {
	return Prefix + id
}

// ParsePartition extracts the partition identifier from a
// "parcel_chunk=NN" directory or path segment name. The bool reports whether
// the name carried the shard prefix.
func ParsePartition(name string) (string, bool) {
	if !strings.HasPrefix(name, Prefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, Prefix)
	if id == "" {
		return "", false
	}
	return id, true
}

// PartitionFromPath scans a delta data file path for the partition segment
// and returns the identifier, e.g.
// "parcel_chunk=04/part-0001.parquet" -> "04". The bool reports whether a
// partition segment was present.
func PartitionFromPath(path string) (string, bool) {
	i := strings.Index(path, Prefix)
	if i < 0 {
		return "", false
	}
	rest := path[i+len(Prefix):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
