// Package duck wraps the embedded DuckDB engine behind an explicit handle
// that is opened once per phase run and passed through every component. No
// package-level connection exists; components that need SQL take a *DB.
//
// The handle pins a single connection so that session state (the shard_xxh3
// scalar function and the delta extension) is visible to every query issued
// during the phase.
package duck

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	duckdb "github.com/marcboeker/go-duckdb/v2"

	"lakereorg/internal/shard"
)

// DB is one phase run's connection to the embedded engine.
type DB struct {
	db   *sql.DB
	conn *sql.Conn

	deltaLoaded bool
}

// Open starts an in-memory DuckDB instance and registers the shard_xxh3
// scalar function so SQL predicates shard parcels exactly like
// shard.IndexFor.
func Open(ctx context.Context) (*DB, error) {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("duck: open connector: %w", err)
	}
	db := sql.OpenDB(connector)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("duck: acquire connection: %w", err)
	}
	if err := duckdb.RegisterScalarUDF(conn, "shard_xxh3", &shardHashFunc{}); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("duck: register shard_xxh3: %w", err)
	}
	return &DB{db: db, conn: conn}, nil
}

// Close releases the pinned connection and the database.
func (d *DB) Close() error {
	if err := d.conn.Close(); err != nil {
		d.db.Close()
		return err
	}
	return d.db.Close()
}

// Exec runs a statement on the pinned connection.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := d.conn.ExecContext(ctx, query, args...)
	return err
}

// Int64 runs a single-value aggregate query and returns the scalar.
func (d *DB) Int64(ctx context.Context, query string, args ...any) (int64, error) {
	var v int64
	if err := d.conn.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// Query runs a row-returning query on the pinned connection.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}

// EnsureDelta installs and loads the delta extension, once per handle. The
// extension backs delta_scan over the managed table.
func (d *DB) EnsureDelta(ctx context.Context) error {
	if d.deltaLoaded {
		return nil
	}
	if err := d.Exec(ctx, "INSTALL delta"); err != nil {
		return fmt.Errorf("duck: install delta extension: %w", err)
	}
	if err := d.Exec(ctx, "LOAD delta"); err != nil {
		return fmt.Errorf("duck: load delta extension: %w", err)
	}
	d.deltaLoaded = true
	return nil
}

// Lit quotes a string for interpolation into a SQL literal. Statements like
// COPY ... TO '<path>' cannot take bind parameters, so paths are embedded as
// quoted literals.
func Lit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// shardHashFunc exposes shard.Hash as the SQL scalar
// shard_xxh3(VARCHAR) -> UBIGINT.
type shardHashFunc struct{}

func (*shardHashFunc) Config() duckdb.ScalarFuncConfig {
	input, err := duckdb.NewTypeInfo(duckdb.TYPE_VARCHAR)
	if err != nil {
		panic(err)
	}
	result, err := duckdb.NewTypeInfo(duckdb.TYPE_UBIGINT)
	if err != nil {
		panic(err)
	}
	return duckdb.ScalarFuncConfig{
		InputTypeInfos: []duckdb.TypeInfo{input},
		ResultTypeInfo: result,
	}
}

func (*shardHashFunc) Executor() duckdb.ScalarFuncExecutor {
	return duckdb.ScalarFuncExecutor{
		RowExecutor: func(values []driver.Value) (any, error) {
			s, ok := values[0].(string)
			if !ok {
				return nil, fmt.Errorf("shard_xxh3: expected VARCHAR, got %T", values[0])
			}
			return shard.Hash(s), nil
		},
	}
}
