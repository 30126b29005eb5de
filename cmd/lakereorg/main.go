package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lakereorg/internal/config"
	"lakereorg/internal/metrics"
	"lakereorg/internal/metrics/prompush"
	"lakereorg/internal/pipeline"
)

// main is the entry point for the pipeline binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		phaseFlg          string
		targetFlg         string
		metricsBackendFlg string
		pushGatewayURLFlg string
		force             bool
		dryRun            bool
		validateOnly      bool
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path (empty = built-in defaults)")
	flag.StringVar(&phaseFlg, "phase", "", "override phase to run (reorg, delta, optimize, all)")
	flag.StringVar(&targetFlg, "target", "", "override validation target (raw, organized, delta, both)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (e.g. pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&force, "force", false, "reprocess shards whose output already exists")
	flag.BoolVar(&dryRun, "dry-run", false, "list the work without writing")
	flag.BoolVar(&validateOnly, "validate-only", false, "skip generation and processing, run validation only")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
		p = loaded
	}
	if phaseFlg != "" {
		p.Reorg.Phase = phaseFlg
	}
	if targetFlg != "" {
		p.Validate.Target = targetFlg
	}
	if force {
		p.Reorg.Force = true
	}
	if dryRun {
		p.Reorg.DryRun = true
	}
	if validateOnly {
		p.ValidateOnly = true
	}
	if *verbose {
		p.Validate.Verbose = true
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if backendName == "" {
		backendName = p.Metrics.Backend
	}
	switch backendName {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → config → default.
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = p.Metrics.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		jobName := p.Job
		if jobName == "" {
			jobName = "lakereorg"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	runner := pipeline.New(ctx, p)
	defer runner.Close()

	res, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("reorg %s", res.Reorg)
	log.Printf("delta %s", res.Delta)
	log.Printf("optimize %s", res.Optimize)
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}

	if failed := res.Reorg.Failed + res.Delta.Failed + res.Optimize.Failed; failed > 0 {
		log.Printf("pipeline completed with %d failed shards", failed)
		os.Exit(1)
	}
	if !res.Validation.AllValid() {
		log.Printf("validation reported issues")
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
