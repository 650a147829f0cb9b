// Package document runs the trial operations against a MongoDB collection.
package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
	zlog "github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the part of *mongo.Collection the engine uses.
type Collection interface {
	Name() string
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Drop(ctx context.Context) error
}

type document struct {
	ID      int64     `bson:"_id"`
	Created time.Time `bson:"created"`
	Value   float64   `bson:"value"`
}

type staged struct {
	ID    int64   `bson:"_id"`
	Value float64 `bson:"value"`
}

type Options struct {
	// Ordered bulk writes stop at the first failure and report its index
	Ordered bool
}

type Document struct {
	primary  Collection
	staging  Collection
	ordered  bool
	prepared bool
}

func New(primary Collection, staging Collection, opts Options) *Document {
	return &Document{primary: primary, staging: staging, ordered: opts.Ordered}
}

func (d *Document) Name() string {
	return "mongodb"
}

func (d *Document) Reset(ctx context.Context) error {
	if !d.prepared {
		if _, err := d.staging.DeleteMany(ctx, bson.D{}); err != nil {
			return classify(err, func(err error) error { return fmt.Errorf("clear %s: %w", d.staging.Name(), err) })
		}
		d.prepared = true
	}
	if _, err := d.primary.DeleteMany(ctx, bson.D{}); err != nil {
		return classify(err, func(err error) error { return fmt.Errorf("reset %s: %w", d.primary.Name(), err) })
	}
	return nil
}

func (d *Document) BulkInsert(ctx context.Context, rows []workload.Row) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rows))
	for i, r := range rows {
		docs[i] = document{ID: r.ID, Created: r.Created, Value: r.Value}
	}

	_, err := d.primary.InsertMany(ctx, docs, options.InsertMany().SetOrdered(d.ordered))
	if err == nil {
		return nil
	}

	// unordered inserts leave whatever succeeded behind
	if _, cleanupErr := d.primary.DeleteMany(context.WithoutCancel(ctx), bson.D{}); cleanupErr != nil {
		err = errors.Join(err, fmt.Errorf("cleanup: %w", cleanupErr))
	}
	return classify(err, func(err error) error { return &benchmark.BulkTransferError{Target: d.primary.Name(), Err: err} })
}

func (d *Document) BatchUpdate(ctx context.Context, rows []workload.Row) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(rows))
	for i, r := range rows {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: r.ID}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: r.Value}}}})
	}

	_, err := d.primary.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(d.ordered))
	if err != nil {
		return classify(err, func(err error) error {
			return &benchmark.PartialBatchError{LastIndex: d.lastAcknowledged(err), Err: err}
		})
	}
	return nil
}

// An ordered bulk write applies every model before the first failing one
func (d *Document) lastAcknowledged(err error) int {
	var bwe mongo.BulkWriteException
	if !d.ordered || !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		return benchmark.UnknownIndex
	}
	first := bwe.WriteErrors[0].Index
	for _, we := range bwe.WriteErrors[1:] {
		first = min(first, we.Index)
	}
	return first - 1
}

func (d *Document) MergeUpdate(ctx context.Context, rows []workload.Row) error {
	if _, err := d.staging.DeleteMany(ctx, bson.D{}); err != nil {
		return classify(err, func(err error) error { return fmt.Errorf("clear %s: %w", d.staging.Name(), err) })
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, len(rows))
	for i, r := range rows {
		docs[i] = staged{ID: r.ID, Value: r.Value}
	}
	if _, err := d.staging.InsertMany(ctx, docs, options.InsertMany().SetOrdered(d.ordered)); err != nil {
		return classify(err, func(err error) error { return &benchmark.BulkTransferError{Target: d.staging.Name(), Err: err} })
	}

	pipeline := mongo.Pipeline{{{Key: "$merge", Value: bson.D{
		{Key: "into", Value: d.primary.Name()},
		{Key: "on", Value: "_id"},
		{Key: "whenMatched", Value: "merge"},
		{Key: "whenNotMatched", Value: "discard"},
	}}}}
	cursor, err := d.staging.Aggregate(ctx, pipeline)
	if err != nil {
		return classify(err, func(err error) error { return fmt.Errorf("merge into %s: %w", d.primary.Name(), err) })
	}
	return cursor.Close(ctx)
}

func (d *Document) Select(ctx context.Context) ([]workload.Row, error) {
	wrap := func(err error) error { return fmt.Errorf("find in %s: %w", d.primary.Name(), err) }

	cursor, err := d.primary.Find(ctx, bson.D{})
	if err != nil {
		return nil, classify(err, wrap)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err, wrap)
	}

	rows := make([]workload.Row, len(docs))
	for i, doc := range docs {
		rows[i] = workload.Row{ID: doc.ID, Created: doc.Created.UTC(), Value: doc.Value}
	}
	return rows, nil
}

func (d *Document) GetConfigs() map[string]string {
	return map[string]string{
		"engine":            "document",
		"collection":        d.primary.Name(),
		"stagingCollection": d.staging.Name(),
		"ordered":           strconv.FormatBool(d.ordered),
	}
}

// Finalize drops the staging collection. The client is closed by the caller.
func (d *Document) Finalize(ctx context.Context) error {
	if err := d.staging.Drop(ctx); err != nil {
		return classify(err, func(err error) error { return fmt.Errorf("drop %s: %w", d.staging.Name(), err) })
	}
	zlog.Debug().Str("collection", d.staging.Name()).Msg("Staging collection dropped")
	d.prepared = false
	return nil
}

func classify(err error, fallback func(error) error) error {
	switch {
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return &benchmark.TimeoutError{Err: err}
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return &benchmark.ConnectionError{Backend: "mongodb", Err: err}
	}
	return fallback(err)
}
