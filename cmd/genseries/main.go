package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"lakereorg/internal/timeseries"
)

// main generates the synthetic raw tile/date tree without running the rest
// of the pipeline. Useful for seeding test environments.
func main() {
	var (
		outputDir  string
		tiles      string
		startDate  string
		endDate    string
		numParcels int
		workers    int
	)

	flag.StringVar(&outputDir, "output-dir", "./output/timeseries-raw", "raw data output directory")
	flag.StringVar(&tiles, "utm-tiles", "32TNR,32TPR", "comma-separated UTM tile identifiers")
	flag.StringVar(&startDate, "start-date", "2024-01-01", "start date (YYYY-MM-DD)")
	flag.StringVar(&endDate, "end-date", "2024-04-15", "end date (YYYY-MM-DD)")
	flag.IntVar(&numParcels, "num-parcels", 500_000, "number of parcels to generate per tile")
	flag.IntVar(&workers, "workers", 0, "concurrent file writers (0 = default of 4)")

	flag.Parse()

	var tileList []string
	for _, t := range strings.Split(tiles, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tileList = append(tileList, t)
		}
	}

	start := time.Now()
	n, err := timeseries.Generate(context.Background(), timeseries.Options{
		OutputDir:  outputDir,
		Tiles:      tileList,
		StartDate:  startDate,
		EndDate:    endDate,
		NumParcels: numParcels,
		Workers:    workers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}
	log.Printf("generated %d files in %s", n, time.Since(start).Truncate(time.Millisecond))
}
