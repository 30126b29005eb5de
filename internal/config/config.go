// Package config defines the canonical, JSON-serializable configuration model
// for the reorganization pipeline. It is intentionally small, explicit, and
// dependency-free so that runs can be described in a file, overridden by
// flags, and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library.
//
// Example (trimmed):
//
//	{
//	  "generate": { "num_parcels": 500000, "utm_tiles": "32TNR,32TPR" },
//	  "reorg":    { "chunk_size": 10000, "phase": "all" },
//	  "dirs":     { "raw": "./output/timeseries-raw" },
//	  "metrics":  { "backend": "pushgateway" }
//	}
package config

import (
	"encoding/json"
	"os"
	"strings"
)

// Pipeline describes one full run: where the data lives, how it is sharded,
// and what the validator should expect. It is the top-level object decoded
// from a run file.
type Pipeline struct {
	// Job names the run for metrics labeling and the run ledger.
	Job string `json:"job"`

	Dirs     Dirs     `json:"dirs"`
	Generate Generate `json:"generate"`
	Reorg    Reorg    `json:"reorg"`
	Validate Validate `json:"validate"`
	Metrics  Metrics  `json:"metrics"`

	// SkipExisting short-circuits whole stages when their output already
	// looks present. Finer-grained per-shard skipping happens inside the
	// phases regardless.
	SkipExisting bool `json:"skip_existing"`

	// ValidateOnly runs only the validation stage.
	ValidateOnly bool `json:"validate_only"`

	// LedgerPath is the SQLite file recording run outcomes. Empty disables
	// the ledger.
	LedgerPath string `json:"ledger_path"`
}

// Dirs holds the three dataset roots.
type Dirs struct {
	// Raw is the source tree partitioned by utm_tile/year/date.
	Raw string `json:"raw"`
	// Organized receives one parcel_chunk=NN directory per shard.
	Organized string `json:"organized"`
	// Delta contains the managed parcel_data table.
	Delta string `json:"delta"`
}

// Generate configures the synthetic source generator.
type Generate struct {
	NumParcels int    `json:"num_parcels"`
	StartDate  string `json:"start_date"` // YYYY-MM-DD
	EndDate    string `json:"end_date"`   // YYYY-MM-DD
	// UTMTiles is a comma-separated list of tile identifiers. Every tile
	// carries the same parcel id space, so multiple tiles intentionally
	// duplicate observations.
	UTMTiles string `json:"utm_tiles"`
}

// Reorg configures the shard pipeline phases.
type Reorg struct {
	// ChunkSize is the target number of parcels per shard.
	ChunkSize int `json:"chunk_size"`
	// Phase selects which phases run: "reorg", "delta", "optimize", or "all".
	Phase string `json:"phase"`
	// Force reprocesses shards and partitions that already exist.
	Force bool `json:"force"`
	// DryRun reports what would be done without writing anything.
	DryRun bool `json:"dry_run"`
}

// Validate configures the expectations checked by the validators.
type Validate struct {
	// Target selects what to validate: "raw", "organized", "delta", "both".
	Target string `json:"target"`
	// ExpectedTotalParcels is the parcel population the generator was asked
	// for.
	ExpectedTotalParcels int `json:"expected_total_parcels"`
	// ExpectedTiles affects the reported (never asserted) duplicate estimate.
	ExpectedTiles int `json:"expected_tiles"`
	// ExpectedDates is the dates-per-parcel expectation; 0 auto-detects from
	// the raw tree.
	ExpectedDates int `json:"expected_dates"`
	// Verbose prints per-partition detail during validation.
	Verbose bool `json:"verbose"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "none", or empty (disabled).
	Backend string `json:"backend"`
	// PushgatewayURL is the base URL for the pushgateway backend.
	PushgatewayURL string `json:"pushgateway_url"`
}

// Default returns the Pipeline used when no run file is given. The values
// mirror the dataset's historical defaults.
func Default() Pipeline {
	return Pipeline{
		Job: "lakereorg",
		Dirs: Dirs{
			Raw:       "./output/timeseries-raw",
			Organized: "./output/timeseries-organized",
			Delta:     "./output/timeseries-delta",
		},
		Generate: Generate{
			NumParcels: 500_000,
			StartDate:  "2024-01-01",
			EndDate:    "2024-04-15",
			UTMTiles:   "32TNR,32TPR",
		},
		Reorg: Reorg{
			ChunkSize: 10_000,
			Phase:     "all",
		},
		Validate: Validate{
			Target:               "both",
			ExpectedTotalParcels: 500_000,
			ExpectedTiles:        2,
		},
		SkipExisting: true,
	}
}

// Load decodes a Pipeline from a JSON file, starting from Default so absent
// keys keep their defaults.
func Load(path string) (Pipeline, error) {
	p := Default()
	f, err := os.Open(path)
	if err != nil {
		return p, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return p, err
	}
	return p, nil
}

// Tiles splits the comma-separated UTM tile list, dropping empty entries.
func (g Generate) Tiles() []string {
	var out []string
	for _, t := range strings.Split(g.UTMTiles, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
