// Package stats holds the fixed per-phase counters record shared by every
// pipeline phase. Counters only accumulate; phases report a Stats value and
// the orchestrator merges them.
package stats

import "fmt"

// Stats counts shard outcomes for one phase run.
//
// Created is used by the reorganize phase (files written), Processed by the
// delta and optimize phases (partitions streamed or compacted). A phase uses
// one of the two, never both.
type Stats struct {
	Total     int
	Created   int
	Processed int
	Skipped   int
	Failed    int
}

// Merge accumulates other into s.
func (s *Stats) Merge(other Stats) {
	s.Total += other.Total
	s.Created += other.Created
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Done reports how many shards reached a terminal successful state.
func (s Stats) Done() int {
	return s.Created + s.Processed + s.Skipped
}

// String renders the summary-line form used in phase reports.
func (s Stats) String() string {
	return fmt.Sprintf("total=%d created=%d processed=%d skipped=%d failed=%d",
		s.Total, s.Created, s.Processed, s.Skipped, s.Failed)
}
