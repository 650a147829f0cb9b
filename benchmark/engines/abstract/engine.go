package engine

import (
	"context"

	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
)

// Engine adapts one storage backend to the four timed operations of a trial. Implementations are
// used by a single runner at a time and never retry internally.
type Engine interface {
	// Short backend name used in logs and reports
	Name() string
	// Removes all rows from the primary dataset. The first call also provisions the staging dataset.
	Reset(ctx context.Context) error
	// Loads rows into the empty primary dataset in one bulk transfer. On failure the primary
	// dataset holds none of the rows.
	BulkInsert(ctx context.Context, rows []workload.Row) error
	// Sets the value of every row, matched by id, as one logical batch of per-row updates
	BatchUpdate(ctx context.Context, rows []workload.Row) error
	// Stages rows in the staging dataset and applies them to the primary dataset with a single
	// set-based update joined on id
	MergeUpdate(ctx context.Context, rows []workload.Row) error
	// Reads every row of the primary dataset, in no particular order
	Select(ctx context.Context) ([]workload.Row, error)
	// Returns the engine-specific configurations
	GetConfigs() map[string]string
	// Disposes of the staging dataset
	Finalize(ctx context.Context) error
}
