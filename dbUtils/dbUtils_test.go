package dbutils

import (
	"context"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQL(t *testing.T) {
	ctx := context.Background()

	db, conn, err := OpenSQL(ctx, "sqlite", ":memory:")
	require.NoError(t, err)

	var one int
	require.NoError(t, conn.QueryRowContext(ctx, "select 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.NoError(t, CloseSQL(db, conn))
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, _, err := OpenSQL(context.Background(), "oracle", "scott/tiger")

	var connErr *benchmark.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "oracle", connErr.Backend)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, CloseSQL(nil, nil))
	assert.NoError(t, CloseMongo(nil, 0))
}
