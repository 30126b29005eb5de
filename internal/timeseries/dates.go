package timeseries

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseRange expands a start/end date pair into the list of observation
// dates, stepping intervalDays at a time (7 gives the weekly cadence the
// dataset uses). Both endpoints are inclusive when they land on the step.
func ParseRange(startDate, endDate string, intervalDays int) ([]time.Time, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("timeseries: parse start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("timeseries: parse end date %q: %w", endDate, err)
	}
	if intervalDays <= 0 {
		intervalDays = 7
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, intervalDays) {
		dates = append(dates, d)
	}
	return dates, nil
}

// GroupByYear splits a date list into per-year groups, preserving order
// within each year.
func GroupByYear(dates []time.Time) map[int][]time.Time {
	out := make(map[int][]time.Time)
	for _, d := range dates {
		out[d.Year()] = append(out[d.Year()], d)
	}
	return out
}

// DaysSinceEpoch converts a date to the int32 day count parquet DATE columns
// store.
func DaysSinceEpoch(t time.Time) int32 {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return int32(t.Sub(epoch).Hours() / 24)
}
