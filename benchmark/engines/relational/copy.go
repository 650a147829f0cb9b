package relational

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
)

type copyFunc func(ctx context.Context, tx *sql.Tx, table string, columns []Column, rows []workload.Row) error

const mysqlTimestamp = "2006-01-02 15:04:05.000"

func columnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func columnValues(columns []Column, row workload.Row) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		switch c.Type {
		case Integer:
			values[i] = row.ID
		case Timestamp:
			values[i] = row.Created
		case Float:
			values[i] = row.Value
		}
	}
	return values
}

// Runs a driver COPY/bulk-copy statement: one exec per row buffers it, a final empty exec flushes.
func copyStatement(ctx context.Context, tx *sql.Tx, query string, columns []Column, rows []workload.Row) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, columnValues(columns, row)...); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}

func copyPostgres(ctx context.Context, tx *sql.Tx, table string, columns []Column, rows []workload.Row) error {
	return copyStatement(ctx, tx, pq.CopyIn(table, columnNames(columns)...), columns, rows)
}

func copySQLServer(ctx context.Context, tx *sql.Tx, table string, columns []Column, rows []workload.Row) error {
	query := mssql.CopyIn(table, mssql.BulkOptions{Tablock: true}, columnNames(columns)...)
	return copyStatement(ctx, tx, query, columns, rows)
}

// Streams rows as CSV through LOAD DATA LOCAL INFILE. The server must allow local_infile.
func copyMySQL(ctx context.Context, tx *sql.Tx, table string, columns []Column, rows []workload.Row) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			switch c.Type {
			case Integer:
				record[i] = strconv.FormatInt(row.ID, 10)
			case Timestamp:
				record[i] = row.Created.UTC().Format(mysqlTimestamp)
			case Float:
				record[i] = strconv.FormatFloat(row.Value, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	name := "bulk-" + uuid.NewString()
	data := buf.Bytes()
	mysql.RegisterReaderHandler(name, func() io.Reader { return bytes.NewReader(data) })
	defer mysql.DeregisterReaderHandler(name)

	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"load data local infile 'Reader::%s' into table %s fields terminated by ',' optionally enclosed by '\"' lines terminated by '\\n' (%s)",
		name, table, strings.Join(columnNames(columns), ", ")))
	return err
}

// Fallback for drivers without a bulk path: one prepared insert per row, all in tx.
func copyInserts(ctx context.Context, tx *sql.Tx, table string, columns []Column, rows []workload.Row) error {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("insert into %s (%s) values (%s)", table, strings.Join(columnNames(columns), ", "), marks)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, columnValues(columns, row)...); err != nil {
			return err
		}
	}
	return nil
}
