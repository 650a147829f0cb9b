package dbutils

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	zlog "github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Opens a pool for driver and pins one connection of it. The pinned connection carries the session
// state (temporary tables, session options) of the whole run.
func OpenSQL(ctx context.Context, driver string, dsn string) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, &benchmark.ConnectionError{Backend: driver, Err: err}
	}
	// the run only ever uses one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, &benchmark.ConnectionError{Backend: driver, Err: err}
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, &benchmark.ConnectionError{Backend: driver, Err: err}
	}

	zlog.Debug().Str("driver", driver).Msg("Connected")
	return db, conn, nil
}

// Releases the pinned connection, then the pool
func CloseSQL(db *sql.DB, conn *sql.Conn) error {
	var errs []error
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	if db != nil {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}

// Connects to uri and checks that the primary answers.
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &benchmark.ConnectionError{Backend: "mongodb", Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &benchmark.ConnectionError{Backend: "mongodb", Err: err}
	}

	zlog.Debug().Msg("Connected to mongodb")
	return client, nil
}

// Disconnects client, waiting at most timeout for in-progress operations
func CloseMongo(client *mongo.Client, timeout time.Duration) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Disconnect(ctx)
}
