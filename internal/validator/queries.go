package validator

import (
	"context"
	"database/sql"
	"fmt"

	"lakereorg/internal/duck"
)

// fileStats is the aggregate profile of one parquet source or one table
// partition.
type fileStats struct {
	TotalRecords  int64
	UniqueParcels int64
	UniqueDates   int64
	DateRange     string
}

func scanDateRange(minDate, maxDate sql.NullTime) string {
	if !minDate.Valid || !maxDate.Valid {
		return "empty"
	}
	return minDate.Time.Format("2006-01-02") + " to " + maxDate.Time.Format("2006-01-02")
}

// statsFor profiles one scannable source. from is either a
// read_parquet(...) call or a delta_scan(...) call with an optional WHERE
// clause, already quoted by the caller.
func statsFor(ctx context.Context, db *duck.DB, from string) (fileStats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT parcel_id),
			COUNT(DISTINCT date),
			MIN(date),
			MAX(date)
		FROM %s`, from)

	var st fileStats
	var minDate, maxDate sql.NullTime
	rows, err := db.Query(ctx, query)
	if err != nil {
		return fileStats{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return fileStats{}, fmt.Errorf("stats query returned no rows")
	}
	if err := rows.Scan(&st.TotalRecords, &st.UniqueParcels, &st.UniqueDates, &minDate, &maxDate); err != nil {
		return fileStats{}, err
	}
	st.DateRange = scanDateRange(minDate, maxDate)
	return st, rows.Err()
}

// distinctParcels returns the parcel id set of one scannable source.
func distinctParcels(ctx context.Context, db *duck.DB, from string) (map[string]struct{}, error) {
	rows, err := db.Query(ctx, "SELECT DISTINCT parcel_id FROM "+from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// parcelDateCounts returns distinct observation dates per parcel for one
// scannable source.
func parcelDateCounts(ctx context.Context, db *duck.DB, from string) (map[string]int64, error) {
	query := fmt.Sprintf(`
		SELECT parcel_id, COUNT(*) FROM (
			SELECT DISTINCT parcel_id, date FROM %s
		) GROUP BY parcel_id`, from)
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var p string
		var n int64
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		out[p] = n
	}
	return out, rows.Err()
}

// distinctPairCount counts distinct (parcel_id, date) pairs in one scannable
// source.
func distinctPairCount(ctx context.Context, db *duck.DB, from string) (int64, error) {
	return db.Int64(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT DISTINCT parcel_id, date FROM %s)", from))
}

// readParquet builds a read_parquet scan clause for a quoted path.
func readParquet(path string) string {
	return "read_parquet(" + duck.Lit(path) + ")"
}

// deltaScan builds a delta_scan clause for the table, optionally filtered to
// one partition.
func deltaScan(tablePath, partition string) string {
	from := "delta_scan(" + duck.Lit(tablePath) + ")"
	if partition != "" {
		from += " WHERE parcel_chunk = " + duck.Lit(partition)
	}
	return from
}
