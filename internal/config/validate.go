// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "reorg.phase"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Phases accepted by reorg.phase.
var knownPhases = map[string]struct{}{
	"reorg": {}, "delta": {}, "optimize": {}, "all": {},
}

// Targets accepted by validate.target.
var knownTargets = map[string]struct{}{
	"raw": {}, "organized": {}, "delta": {}, "both": {},
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and the run ledger",
		})
	}

	for _, d := range []struct{ path, val string }{
		{"dirs.raw", p.Dirs.Raw},
		{"dirs.organized", p.Dirs.Organized},
		{"dirs.delta", p.Dirs.Delta},
	} {
		if strings.TrimSpace(d.val) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     d.path,
				Message:  "directory must not be empty",
			})
		}
	}

	if p.Reorg.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reorg.chunk_size",
			Message:  fmt.Sprintf("chunk_size must be positive, got %d", p.Reorg.ChunkSize),
		})
	}
	if _, ok := knownPhases[p.Reorg.Phase]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reorg.phase",
			Message:  fmt.Sprintf("unknown phase %q; want reorg, delta, optimize, or all", p.Reorg.Phase),
		})
	}

	if _, ok := knownTargets[p.Validate.Target]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "validate.target",
			Message:  fmt.Sprintf("unknown target %q; want raw, organized, delta, or both", p.Validate.Target),
		})
	}
	if p.Validate.ExpectedDates < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "validate.expected_dates",
			Message:  "expected_dates must be >= 0 (0 auto-detects)",
		})
	}

	issues = append(issues, validateGenerate(p.Generate)...)

	switch p.Metrics.Backend {
	case "", "none", "pushgateway":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", p.Metrics.Backend),
		})
	}

	return issues
}

func validateGenerate(g Generate) []Issue {
	var issues []Issue

	if g.NumParcels <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.num_parcels",
			Message:  fmt.Sprintf("num_parcels must be positive, got %d", g.NumParcels),
		})
	}
	if len(g.Tiles()) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.utm_tiles",
			Message:  "at least one UTM tile is required",
		})
	}

	start, errStart := time.Parse("2006-01-02", g.StartDate)
	if errStart != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.start_date",
			Message:  fmt.Sprintf("invalid date %q; want YYYY-MM-DD", g.StartDate),
		})
	}
	end, errEnd := time.Parse("2006-01-02", g.EndDate)
	if errEnd != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.end_date",
			Message:  fmt.Sprintf("invalid date %q; want YYYY-MM-DD", g.EndDate),
		})
	}
	if errStart == nil && errEnd == nil && end.Before(start) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.end_date",
			Message:  "end_date precedes start_date",
		})
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
