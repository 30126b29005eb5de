// Package deltalake manages the single partitioned delta table at
// <delta_dir>/parcel_data. Rows are partitioned by the parcel_chunk column;
// each shard's deduplicated rows live in data files under
// parcel_chunk=NN/ inside the table, tracked by the delta transaction log.
//
// The delta-go library owns the log (atomic versioned commits, add/remove
// file metadata); the embedded engine writes the parquet data files and runs
// every read query through delta_scan.
package deltalake

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	delta "github.com/rivian/delta-go"
	"github.com/rivian/delta-go/lock/filelock"
	"github.com/rivian/delta-go/state/filestate"
	"github.com/rivian/delta-go/storage"
	"github.com/rivian/delta-go/storage/filestore"

	"lakereorg/internal/shard"
)

// TableDirName is the partitioned table's directory under the delta root.
const TableDirName = "parcel_data"

// PartitionColumn is the logical partition column carrying the shard id.
const PartitionColumn = "parcel_chunk"

// TablePath returns the canonical table location under a delta root
// directory.
func TablePath(deltaDir string) string {
	return filepath.Join(deltaDir, TableDirName)
}

// TableState is an immutable snapshot of the delta table taken once per
// pipeline run. Shards written later in the same run are intentionally not
// reflected; the write loop visits shards in a fixed, non-overlapping order.
type TableState struct {
	Exists     bool
	Version    int64
	FileCount  int
	Partitions map[string]struct{}
}

// HasPartition reports whether the snapshot already contains the partition
// id.
func (s TableState) HasPartition(id string) bool {
	_, ok := s.Partitions[id]
	return ok
}

// openTable wires the delta-go table against local storage. The table may or
// may not exist yet; Load decides.
func openTable(tablePath string) *delta.Table {
	path := storage.NewPath(tablePath)
	store := filestore.New(path)
	lock := filelock.New(path, "_delta_log/_commit.lock", filelock.Options{})
	stateStore := filestate.New(path, "_delta_log/_commit.state")
	return delta.NewTable(store, lock, stateStore)
}

// loadTable opens and loads the table at tablePath. An unreadable or absent
// log yields an error.
func loadTable(tablePath string) (*delta.Table, error) {
	tbl := openTable(tablePath)
	if err := tbl.Load(nil); err != nil {
		return nil, err
	}
	return tbl, nil
}

// SnapshotState inspects tablePath and reports whether a usable table exists
// there, along with its version, active file count, and the partition ids
// parsed from the active file paths. A directory that cannot be opened as a
// table (corruption included) reports as absent; the caller warns
// separately.
func SnapshotState(tablePath string) TableState {
	if _, err := os.Stat(tablePath); err != nil {
		return TableState{Partitions: map[string]struct{}{}}
	}
	tbl, err := loadTable(tablePath)
	if err != nil {
		return TableState{Partitions: map[string]struct{}{}}
	}
	files := tbl.State.Files
	if len(files) == 0 {
		// A log with no data files is not a usable table.
		return TableState{Partitions: map[string]struct{}{}}
	}

	parts := make(map[string]struct{}, len(files))
	for path := range files {
		if id, ok := shard.PartitionFromPath(path); ok {
			parts[id] = struct{}{}
		}
	}
	return TableState{
		Exists:     true,
		Version:    tbl.State.Version,
		FileCount:  len(files),
		Partitions: parts,
	}
}

// createTable initializes a fresh table (metadata + protocol, no data files)
// at tablePath, replacing whatever was there.
func createTable(tablePath string) (*delta.Table, error) {
	if err := os.RemoveAll(tablePath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tablePath, 0o755); err != nil {
		return nil, err
	}
	tbl := openTable(tablePath)
	metadata := delta.NewTableMetaData(
		TableDirName,
		"parcel timeseries partitioned by "+PartitionColumn,
		new(delta.Format).Default(),
		tableSchema(),
		[]string{PartitionColumn},
		map[string]string{},
	)
	err := tbl.Create(*metadata, new(delta.Protocol).Default(), delta.CommitInfo{
		"operation": "CREATE TABLE",
	}, []delta.Add{})
	if err != nil {
		return nil, fmt.Errorf("deltalake: create table at %s: %w", tablePath, err)
	}
	return tbl, nil
}

// commitAdd records one freshly written data file in the log.
func commitAdd(tbl *delta.Table, relPath, partitionID string, size, rows int64) (int64, error) {
	add := delta.Add{
		Path:             relPath,
		Size:             size,
		PartitionValues:  map[string]string{PartitionColumn: partitionID},
		ModificationTime: time.Now().UnixMilli(),
		DataChange:       true,
		Stats:            fmt.Sprintf(`{"numRecords":%d}`, rows),
	}
	tx := tbl.CreateTransaction(delta.NewTransactionOptions())
	tx.AddAction(add)
	return tx.Commit()
}

func tableSchema() delta.SchemaTypeStruct {
	field := func(name string, t delta.SchemaDataType) delta.SchemaField {
		return delta.SchemaField{Name: name, Type: t, Nullable: true, Metadata: map[string]any{}}
	}
	return delta.SchemaTypeStruct{
		Fields: []delta.SchemaField{
			field("parcel_id", delta.String),
			field("date", delta.Date),
			field("ndvi", delta.Double),
			field("evi", delta.Double),
			field("red", delta.Double),
			field("nir", delta.Double),
			field("blue", delta.Double),
			field("green", delta.Double),
			field("swir1", delta.Double),
			field("swir2", delta.Double),
			field("temperature", delta.Double),
			field("precipitation", delta.Double),
			field("cloud_cover", delta.Double),
			field("geometry_area", delta.Double),
			field(PartitionColumn, delta.String),
		},
	}
}
