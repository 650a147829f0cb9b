package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// In-memory stand-in for a MongoDB collection. Only the operations and documents the engine
// sends are understood.
type fakeCollection struct {
	name    string
	docs    map[int64]bson.M
	peers   map[string]*fakeCollection
	dropped bool

	// Index at which InsertMany or BulkWrite fails, -1 for never
	failInsertAt int
	failUpdateAt int
	// Returned by every call when set
	err error
}

func newFakes(names ...string) []*fakeCollection {
	peers := map[string]*fakeCollection{}
	fakes := make([]*fakeCollection, len(names))
	for i, name := range names {
		fakes[i] = &fakeCollection{name: name, docs: map[int64]bson.M{}, peers: peers, failInsertAt: -1, failUpdateAt: -1}
		peers[name] = fakes[i]
	}
	return fakes
}

func (c *fakeCollection) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.err
}

func (c *fakeCollection) Name() string {
	return c.name
}

func (c *fakeCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	result := &mongo.InsertManyResult{}
	for i, d := range documents {
		if i == c.failInsertAt {
			return result, mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
				{WriteError: mongo.WriteError{Index: i, Code: 11000, Message: "E11000 duplicate key error"}},
			}}
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return result, err
		}
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return result, err
		}
		id := m["_id"].(int64)
		c.docs[id] = m
		result.InsertedIDs = append(result.InsertedIDs, id)
	}
	return result, nil
}

func (c *fakeCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	ordered := true
	for _, o := range opts {
		if o != nil && o.Ordered != nil {
			ordered = *o.Ordered
		}
	}

	result := &mongo.BulkWriteResult{}
	var failures []mongo.BulkWriteError
	for i, model := range models {
		if i == c.failUpdateAt {
			failures = append(failures, mongo.BulkWriteError{WriteError: mongo.WriteError{Index: i, Message: "rejected"}})
			if ordered {
				break
			}
			continue
		}
		update := model.(*mongo.UpdateOneModel)
		id := update.Filter.(bson.D)[0].Value.(int64)
		set := update.Update.(bson.D)[0].Value.(bson.D)
		if doc, ok := c.docs[id]; ok {
			for _, field := range set {
				doc[field.Key] = field.Value
			}
			result.MatchedCount++
			result.ModifiedCount++
		}
	}
	if len(failures) > 0 {
		return result, mongo.BulkWriteException{WriteErrors: failures}
	}
	return result, nil
}

func (c *fakeCollection) all() []interface{} {
	docs := make([]interface{}, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, d)
	}
	return docs
}

func (c *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return mongo.NewCursorFromDocuments(c.all(), nil, nil)
}

func (c *fakeCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	stage := pipeline.(mongo.Pipeline)[0][0]
	if stage.Key != "$merge" {
		return nil, fmt.Errorf("unsupported stage %s", stage.Key)
	}
	merge := stage.Value.(bson.D).Map()
	if merge["on"] != "_id" || merge["whenMatched"] != "merge" || merge["whenNotMatched"] != "discard" {
		return nil, fmt.Errorf("unsupported $merge %v", merge)
	}
	target := c.peers[merge["into"].(string)]
	for id, src := range c.docs {
		dst, ok := target.docs[id]
		if !ok {
			continue
		}
		for k, v := range src {
			dst[k] = v
		}
	}
	return mongo.NewCursorFromDocuments(nil, nil, nil)
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	n := len(c.docs)
	c.docs = map[int64]bson.M{}
	return &mongo.DeleteResult{DeletedCount: int64(n)}, nil
}

func (c *fakeCollection) Drop(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.docs = map[int64]bson.M{}
	c.dropped = true
	return nil
}
