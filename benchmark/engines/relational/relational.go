// Package relational runs the trial operations against a SQL database through database/sql.
// All statements go through one *sql.Conn, so the session-scoped staging table stays visible
// between operations.
package relational

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
	zlog "github.com/rs/zerolog/log"
)

type Relational struct {
	conn        *sql.Conn
	dialect     Dialect
	table       string
	staging     string
	provisioned bool
}

// New returns an engine over conn. An empty staging name selects the dialect default.
func New(conn *sql.Conn, dialect Dialect, table string, staging string) *Relational {
	if staging == "" {
		staging = dialect.Staging
	}
	return &Relational{conn: conn, dialect: dialect, table: table, staging: staging}
}

func (r *Relational) Name() string {
	return r.dialect.Name
}

func (r *Relational) exec(ctx context.Context, template string) error {
	_, err := r.conn.ExecContext(ctx, fmt.Sprintf(template, r.table, r.staging))
	return err
}

// CreateSchema creates the primary table if it does not exist. Runs never call it themselves; the
// table is expected to be provisioned up front.
func (r *Relational) CreateSchema(ctx context.Context) error {
	if err := r.exec(ctx, r.dialect.CreatePrimary); err != nil {
		return r.classify(err, func(err error) error { return fmt.Errorf("create %s: %w", r.table, err) })
	}
	return nil
}

// Runs the session statements and creates the session-scoped staging table
func (r *Relational) provision(ctx context.Context) error {
	for _, stmt := range r.dialect.Session {
		if _, err := r.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("session %q: %w", stmt, err)
		}
	}
	if err := r.exec(ctx, r.dialect.CreateStaging); err != nil {
		return fmt.Errorf("create %s: %w", r.staging, err)
	}
	zlog.Debug().Str("engine", r.dialect.Name).Str("table", r.table).Str("staging", r.staging).Msg("Provisioned")
	r.provisioned = true
	return nil
}

func (r *Relational) Reset(ctx context.Context) error {
	if !r.provisioned {
		if err := r.provision(ctx); err != nil {
			return r.classify(err, nil)
		}
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(r.dialect.Truncate, r.table, r.staging))
		return err
	})
	if err != nil {
		return r.classify(err, func(err error) error { return fmt.Errorf("reset %s: %w", r.table, err) })
	}
	return nil
}

func (r *Relational) BulkInsert(ctx context.Context, rows []workload.Row) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		return r.dialect.Copy(ctx, tx, r.table, primaryColumns, rows)
	})
	if err != nil {
		return r.classify(err, func(err error) error { return &benchmark.BulkTransferError{Target: r.table, Err: err} })
	}
	return nil
}

func (r *Relational) BatchUpdate(ctx context.Context, rows []workload.Row) error {
	partial := func(last int) func(error) error {
		return func(err error) error { return &benchmark.PartialBatchError{LastIndex: last, Err: err} }
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return r.classify(err, partial(benchmark.UnknownIndex))
	}
	stmt, err := tx.PrepareContext(ctx, r.dialect.update(r.table))
	if err != nil {
		_ = tx.Rollback()
		return r.classify(err, partial(benchmark.UnknownIndex))
	}

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Value, row.ID); err != nil {
			stmt.Close()
			_ = tx.Rollback()
			return r.classify(err, partial(i-1))
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return r.classify(err, partial(benchmark.UnknownIndex))
	}
	return nil
}

func (r *Relational) MergeUpdate(ctx context.Context, rows []workload.Row) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(r.dialect.ClearStaging, r.table, r.staging)); err != nil {
			return fmt.Errorf("clear %s: %w", r.staging, err)
		}
		if err := r.dialect.Copy(ctx, tx, r.staging, stagingColumns, rows); err != nil {
			return &benchmark.BulkTransferError{Target: r.staging, Err: err}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(r.dialect.Merge, r.table, r.staging)); err != nil {
			return fmt.Errorf("merge into %s: %w", r.table, err)
		}
		return nil
	})
	if err != nil {
		return r.classify(err, nil)
	}
	return nil
}

func (r *Relational) Select(ctx context.Context) ([]workload.Row, error) {
	var result []workload.Row
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, r.dialect.selectAll(r.table))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row workload.Row
			var created any
			if err := rows.Scan(&row.ID, &created, &row.Value); err != nil {
				return err
			}
			if row.Created, err = decodeTime(created); err != nil {
				return fmt.Errorf("row %d: %w", row.ID, err)
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.classify(err, func(err error) error { return fmt.Errorf("select from %s: %w", r.table, err) })
	}
	return result, nil
}

func (r *Relational) GetConfigs() map[string]string {
	return map[string]string{
		"engine":       "relational",
		"dialect":      r.dialect.Name,
		"table":        r.table,
		"stagingTable": r.staging,
	}
}

// Finalize drops the staging table. Closing the connection is left to the caller.
func (r *Relational) Finalize(ctx context.Context) error {
	if !r.provisioned {
		return nil
	}
	if err := r.exec(ctx, r.dialect.DropStaging); err != nil {
		return r.classify(err, func(err error) error { return fmt.Errorf("drop %s: %w", r.staging, err) })
	}
	r.provisioned = false
	return nil
}

// Runs fn in a transaction, committed only when fn succeeds
func (r *Relational) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Maps deadline and connection failures onto the benchmark taxonomy; anything else goes through
// fallback, if given.
func (r *Relational) classify(err error, fallback func(error) error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &benchmark.TimeoutError{Err: err}
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return &benchmark.ConnectionError{Backend: r.dialect.Name, Err: err}
	case fallback != nil:
		return fallback(err)
	}
	return err
}
