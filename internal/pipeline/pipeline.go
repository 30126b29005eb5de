// Package pipeline sequences the phases behind the named selections
// (reorg, delta, optimize, all): generate raw data when missing, repartition
// it into parcel chunks, convert the chunks into the partitioned table,
// compact it, and always validate.
//
// State machine: pending -> reorganize -> convert -> optimize -> validated
// -> completed|failed. A phase error aborts the run with status failed;
// partial progress on disk is left in place and picked up by the skip logic
// on the next run.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"lakereorg/internal/config"
	"lakereorg/internal/deltalake"
	"lakereorg/internal/duck"
	"lakereorg/internal/metrics"
	"lakereorg/internal/reorg"
	"lakereorg/internal/runlog"
	"lakereorg/internal/stats"
	"lakereorg/internal/timeseries"
	"lakereorg/internal/validator"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Job             string
	Status          string // "completed" or "failed"
	StagesCompleted []string
	StagesFailed    []string

	Reorg      stats.Stats
	Delta      stats.Stats
	Optimize   stats.Stats
	Validation validator.Results
}

// Runner executes the pipeline for one configuration.
type Runner struct {
	cfg    config.Pipeline
	ledger *runlog.Ledger
}

// openEngine opens the query engine handle for one stage. Stubbed in tests.
var openEngine = duck.Open

// New builds a Runner. The run ledger is best-effort: if it cannot be
// opened the pipeline warns and runs without it.
func New(ctx context.Context, cfg config.Pipeline) *Runner {
	r := &Runner{cfg: cfg}
	if cfg.LedgerPath != "" {
		ledger, err := runlog.Open(ctx, cfg.LedgerPath)
		if err != nil {
			log.Printf("pipeline: run ledger unavailable: %v", err)
		} else {
			r.ledger = ledger
		}
	}
	return r
}

// Close releases the runner's resources.
func (r *Runner) Close() error {
	return r.ledger.Close()
}

// Run executes the configured phases and always validates. The returned
// error is non-nil only for terminal failures; per-shard failures are
// carried in the phase statistics.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	cfg := r.cfg
	res := Result{Job: cfg.Job, Status: "running"}

	log.Printf("pipeline: job=%s phase=%s raw=%s organized=%s delta=%s",
		cfg.Job, cfg.Reorg.Phase, cfg.Dirs.Raw, cfg.Dirs.Organized, cfg.Dirs.Delta)

	if !cfg.ValidateOnly {
		if err := r.generateStage(ctx, &res); err != nil {
			return r.fail(res, "generate", err)
		}
		if runsPhase(cfg.Reorg.Phase, "reorg") {
			if err := r.reorgStage(ctx, &res); err != nil {
				return r.fail(res, "reorganize", err)
			}
		}
		if runsPhase(cfg.Reorg.Phase, "delta") {
			if err := r.deltaStage(ctx, &res); err != nil {
				return r.fail(res, "convert", err)
			}
		}
		if runsPhase(cfg.Reorg.Phase, "optimize") {
			if err := r.optimizeStage(ctx, &res); err != nil {
				return r.fail(res, "optimize", err)
			}
		}
	}

	// Validation always runs, even when every earlier stage was skipped.
	// A run that cannot validate did not complete.
	if err := r.validateStage(ctx, &res); err != nil {
		return r.fail(res, "validate", err)
	}

	res.Status = "completed"
	log.Printf("pipeline: completed, stages: %s", strings.Join(res.StagesCompleted, ", "))
	if err := metrics.Flush(); err != nil {
		log.Printf("pipeline: metrics flush failed: %v", err)
	}
	return res, nil
}

func (r *Runner) fail(res Result, stage string, err error) (Result, error) {
	res.Status = "failed"
	res.StagesFailed = append(res.StagesFailed, stage)
	log.Printf("pipeline: failed in %s: %v", stage, err)
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("pipeline: metrics flush failed: %v", ferr)
	}
	return res, err
}

// runsPhase reports whether the phase selection includes the named phase.
func runsPhase(selection, phase string) bool {
	return selection == "all" || selection == phase
}

func (r *Runner) generateStage(ctx context.Context, res *Result) error {
	if r.cfg.SkipExisting && hasParquetFiles(r.cfg.Dirs.Raw) {
		log.Printf("pipeline: skipping generation, raw data exists")
		res.StagesCompleted = append(res.StagesCompleted, "generate_skipped")
		return nil
	}

	start := time.Now()
	n, err := timeseries.Generate(ctx, timeseries.Options{
		OutputDir:  r.cfg.Dirs.Raw,
		Tiles:      r.cfg.Generate.Tiles(),
		StartDate:  r.cfg.Generate.StartDate,
		EndDate:    r.cfg.Generate.EndDate,
		NumParcels: r.cfg.Generate.NumParcels,
	})
	metrics.RecordPhase(r.cfg.Job, "generate", err, time.Since(start))
	r.record(ctx, "generate", stats.Stats{Total: n, Created: n}, start, err)
	if err != nil {
		return fmt.Errorf("generate stage: %w", err)
	}
	res.StagesCompleted = append(res.StagesCompleted, "generate")
	return nil
}

func (r *Runner) reorgStage(ctx context.Context, res *Result) error {
	if r.cfg.SkipExisting && !r.cfg.Reorg.Force {
		if n, _ := reorg.Progress(r.cfg.Dirs.Organized); n > 0 {
			log.Printf("pipeline: skipping reorganization, %d valid chunks already organized", n)
			res.Reorg = stats.Stats{Total: n, Skipped: n}
			res.StagesCompleted = append(res.StagesCompleted, "reorganize_skipped")
			return nil
		}
	}

	db, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	st, err := reorg.Reorganize(ctx, db, reorg.Options{
		InputDir:  r.cfg.Dirs.Raw,
		OutputDir: r.cfg.Dirs.Organized,
		ChunkSize: r.cfg.Reorg.ChunkSize,
		DryRun:    r.cfg.Reorg.DryRun,
		Force:     r.cfg.Reorg.Force,
	})
	metrics.RecordPhase(r.cfg.Job, "reorg", err, time.Since(start))
	recordShards(r.cfg.Job, st)
	r.record(ctx, "reorg", st, start, err)
	res.Reorg = st
	if err != nil {
		return fmt.Errorf("reorganize stage: %w", err)
	}
	res.StagesCompleted = append(res.StagesCompleted, "reorganize")
	return nil
}

func (r *Runner) deltaStage(ctx context.Context, res *Result) error {
	if r.cfg.SkipExisting && !r.cfg.Reorg.Force &&
		deltalake.SnapshotState(deltalake.TablePath(r.cfg.Dirs.Delta)).Exists {
		log.Printf("pipeline: skipping conversion, table exists")
		res.StagesCompleted = append(res.StagesCompleted, "convert_skipped")
		return nil
	}

	db, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	st, err := deltalake.Convert(ctx, db, deltalake.ConvertOptions{
		InputDir: r.cfg.Dirs.Organized,
		DeltaDir: r.cfg.Dirs.Delta,
		DryRun:   r.cfg.Reorg.DryRun,
		Force:    r.cfg.Reorg.Force,
	})
	metrics.RecordPhase(r.cfg.Job, "delta", err, time.Since(start))
	recordShards(r.cfg.Job, st)
	r.record(ctx, "delta", st, start, err)
	res.Delta = st
	if err != nil {
		return fmt.Errorf("convert stage: %w", err)
	}
	res.StagesCompleted = append(res.StagesCompleted, "convert")
	return nil
}

func (r *Runner) optimizeStage(ctx context.Context, res *Result) error {
	db, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	st, err := deltalake.Optimize(ctx, db, deltalake.OptimizeOptions{
		DeltaDir: r.cfg.Dirs.Delta,
		DryRun:   r.cfg.Reorg.DryRun,
	})
	metrics.RecordPhase(r.cfg.Job, "optimize", err, time.Since(start))
	r.record(ctx, "optimize", st, start, err)
	res.Optimize = st
	if err != nil {
		return fmt.Errorf("optimize stage: %w", err)
	}
	res.StagesCompleted = append(res.StagesCompleted, "optimize")
	return nil
}

func (r *Runner) validateStage(ctx context.Context, res *Result) error {
	db, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("validate stage: %w", err)
	}
	defer db.Close()

	start := time.Now()
	results := validator.Run(ctx, db, validator.Options{
		Target:               r.cfg.Validate.Target,
		RawDir:               r.cfg.Dirs.Raw,
		OrganizedDir:         r.cfg.Dirs.Organized,
		DeltaDir:             r.cfg.Dirs.Delta,
		ExpectedTotalParcels: int64(r.cfg.Validate.ExpectedTotalParcels),
		ExpectedChunkSize:    r.cfg.Reorg.ChunkSize,
		ExpectedTiles:        int64(r.cfg.Validate.ExpectedTiles),
		ExpectedDates:        int64(r.cfg.Validate.ExpectedDates),
		Verbose:              r.cfg.Validate.Verbose,
	})
	metrics.RecordPhase(r.cfg.Job, "validate", nil, time.Since(start))
	recordIssues(r.cfg.Job, results)
	res.Validation = results

	status := "completed"
	if !results.AllValid() {
		status = "issues"
	}
	r.record(ctx, "validate", stats.Stats{}, start, nil)
	log.Printf("pipeline: validation %s", status)
	res.StagesCompleted = append(res.StagesCompleted, "validate")
	return nil
}

// record appends one phase outcome to the run ledger, best-effort.
func (r *Runner) record(ctx context.Context, phase string, st stats.Stats, start time.Time, err error) {
	status := "completed"
	errText := ""
	if err != nil {
		status = "failed"
		errText = err.Error()
	}
	rec := runlog.Record{
		Job:        r.cfg.Job,
		Phase:      phase,
		Status:     status,
		Stats:      st,
		Error:      errText,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if lerr := r.ledger.Append(ctx, rec); lerr != nil {
		log.Printf("pipeline: failed to record %s run: %v", phase, lerr)
	}
}

func recordShards(job string, st stats.Stats) {
	metrics.RecordShards(job, "created", int64(st.Created))
	metrics.RecordShards(job, "processed", int64(st.Processed))
	metrics.RecordShards(job, "skipped", int64(st.Skipped))
	metrics.RecordShards(job, "failed", int64(st.Failed))
}

func recordIssues(job string, results validator.Results) {
	if results.Raw != nil {
		metrics.RecordIssues(job, "raw", int64(len(results.Raw.Issues)))
	}
	if results.Organized != nil {
		metrics.RecordIssues(job, "organized", int64(len(results.Organized.Issues)))
	}
	if results.Delta != nil {
		metrics.RecordIssues(job, "delta", int64(len(results.Delta.Issues)))
	}
}

// hasParquetFiles reports whether root contains at least one parquet file.
func hasParquetFiles(root string) bool {
	found := false
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}
