package validator

import (
	"context"
	"log"

	"lakereorg/internal/duck"
)

// Options selects what to validate and carries the expected values the
// checks compare against.
type Options struct {
	// Target is one of "raw", "organized", "delta", or "both"
	// (organized plus delta).
	Target       string
	RawDir       string
	OrganizedDir string
	DeltaDir     string

	ExpectedTotalParcels int64
	ExpectedChunkSize    int
	ExpectedTiles        int64
	// ExpectedDates is dates per parcel; zero auto-detects from raw data.
	ExpectedDates int64
	Verbose       bool
}

// Run executes the selected validations. Mismatches land in the results as
// issues, never as errors; Run itself cannot fail.
func Run(ctx context.Context, db *duck.DB, opts Options) Results {
	log.Printf("validate: target=%s", opts.Target)
	var res Results

	if opts.Target == "raw" {
		res.Raw = ValidateRaw(ctx, db, opts.RawDir, opts.ExpectedTotalParcels, opts.Verbose)
		return res
	}

	if opts.Target == "organized" || opts.Target == "both" {
		res.Organized = ValidateOrganized(ctx, db, OrganizedOptions{
			OrganizedDir:      opts.OrganizedDir,
			RawDir:            opts.RawDir,
			ExpectedChunkSize: opts.ExpectedChunkSize,
			ExpectedTiles:     opts.ExpectedTiles,
			ExpectedDates:     opts.ExpectedDates,
			Verbose:           opts.Verbose,
		})
	}
	if opts.Target == "delta" || opts.Target == "both" {
		res.Delta = ValidateDelta(ctx, db, opts.DeltaDir, opts.OrganizedDir, opts.Verbose)
	}

	if opts.Target == "both" {
		if res.AllValid() {
			log.Printf("validate: all validations passed")
		} else {
			if res.Organized != nil && !res.Organized.Valid {
				log.Printf("validate: organized chunks have issues")
			}
			if res.Delta != nil && !res.Delta.Valid {
				log.Printf("validate: delta table has issues")
			}
		}
	}
	return res
}
