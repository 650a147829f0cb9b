package document

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const rows = 1000

func newDocument(t *testing.T, opts Options) (*Document, *fakeCollection, *fakeCollection) {
	t.Helper()
	fakes := newFakes("tsdata", "tsdata_staging")
	d := New(fakes[0], fakes[1], opts)
	require.NoError(t, d.Reset(context.Background()))
	return d, fakes[0], fakes[1]
}

func sortedSelect(t *testing.T, d *Document) []workload.Row {
	t.Helper()
	got, err := d.Select(context.Background())
	require.NoError(t, err)
	slices.SortFunc(got, func(a, b workload.Row) int { return int(a.ID - b.ID) })
	return got
}

func TestResetThenSelectIsEmpty(t *testing.T) {
	d, primary, _ := newDocument(t, Options{})
	require.NoError(t, d.BulkInsert(context.Background(), workload.Collect(10, workload.Insert)))
	require.Len(t, primary.docs, 10)

	require.NoError(t, d.Reset(context.Background()))

	assert.Empty(t, sortedSelect(t, d))
}

func TestFirstResetClearsStaging(t *testing.T) {
	fakes := newFakes("tsdata", "tsdata_staging")
	fakes[1].docs[7] = map[string]interface{}{"_id": int64(7), "value": 1.0}
	d := New(fakes[0], fakes[1], Options{})

	require.NoError(t, d.Reset(context.Background()))

	assert.Empty(t, fakes[1].docs)
}

func TestBulkInsertRoundTrip(t *testing.T) {
	d, _, _ := newDocument(t, Options{})
	want := workload.Collect(rows, workload.Insert)

	require.NoError(t, d.BulkInsert(context.Background(), want))

	assert.Equal(t, want, sortedSelect(t, d))
}

func TestUpdates(t *testing.T) {
	tests := []struct {
		name   string
		mode   workload.Mode
		update func(d *Document, ctx context.Context, rows []workload.Row) error
	}{
		{"batch", workload.InPlaceUpdate, (*Document).BatchUpdate},
		{"merge", workload.MergeUpdate, (*Document).MergeUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newDocument(t, Options{})
			ctx := context.Background()
			require.NoError(t, d.BulkInsert(ctx, workload.Collect(rows, workload.Insert)))

			require.NoError(t, tt.update(d, ctx, workload.Collect(rows, tt.mode)))

			got := sortedSelect(t, d)
			require.Len(t, got, rows)
			for _, row := range got {
				assert.Equal(t, workload.Value(tt.mode, row.ID), row.Value, "row %d", row.ID)
				assert.Equal(t, workload.Created, row.Created)
			}
		})
	}
}

func TestMergeUpdateDiscardsUnknownIDs(t *testing.T) {
	d, primary, staging := newDocument(t, Options{})
	ctx := context.Background()
	require.NoError(t, d.BulkInsert(ctx, workload.Collect(10, workload.Insert)))

	require.NoError(t, d.MergeUpdate(ctx, workload.Collect(20, workload.MergeUpdate)))

	assert.Len(t, primary.docs, 10)
	assert.Len(t, staging.docs, 20)
}

func TestBulkInsertIsAtomic(t *testing.T) {
	d, primary, _ := newDocument(t, Options{})
	primary.failInsertAt = 500

	err := d.BulkInsert(context.Background(), workload.Collect(rows, workload.Insert))

	var transfer *benchmark.BulkTransferError
	require.ErrorAs(t, err, &transfer)
	assert.Equal(t, "tsdata", transfer.Target)
	assert.Empty(t, primary.docs)
}

func TestBatchUpdatePartialFailure(t *testing.T) {
	tests := []struct {
		name    string
		ordered bool
		want    int
	}{
		{"unordered", false, benchmark.UnknownIndex},
		{"ordered", true, 41},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, primary, _ := newDocument(t, Options{Ordered: tt.ordered})
			ctx := context.Background()
			require.NoError(t, d.BulkInsert(ctx, workload.Collect(rows, workload.Insert)))
			primary.failUpdateAt = 42

			err := d.BatchUpdate(ctx, workload.Collect(rows, workload.InPlaceUpdate))

			var partial *benchmark.PartialBatchError
			require.ErrorAs(t, err, &partial)
			assert.Equal(t, tt.want, partial.LastIndex)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		d, _, _ := newDocument(t, Options{})
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := d.Select(ctx)

		var timeout *benchmark.TimeoutError
		assert.ErrorAs(t, err, &timeout)
	})

	t.Run("network", func(t *testing.T) {
		d, primary, _ := newDocument(t, Options{})
		primary.err = mongo.CommandError{Message: "connection reset", Labels: []string{"NetworkError"}}

		err := d.BatchUpdate(context.Background(), workload.Collect(10, workload.InPlaceUpdate))

		var connErr *benchmark.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "mongodb", connErr.Backend)
	})
}

func TestFinalizeDropsStaging(t *testing.T) {
	d, primary, staging := newDocument(t, Options{})
	ctx := context.Background()
	require.NoError(t, d.BulkInsert(ctx, workload.Collect(10, workload.Insert)))
	require.NoError(t, d.MergeUpdate(ctx, workload.Collect(10, workload.MergeUpdate)))

	require.NoError(t, d.Finalize(ctx))

	assert.True(t, staging.dropped)
	assert.False(t, primary.dropped)
	assert.Len(t, primary.docs, 10)
}

func TestGetConfigs(t *testing.T) {
	d, _, _ := newDocument(t, Options{Ordered: true})

	assert.Equal(t, map[string]string{
		"engine":            "document",
		"collection":        "tsdata",
		"stagingCollection": "tsdata_staging",
		"ordered":           "true",
	}, d.GetConfigs())
}
