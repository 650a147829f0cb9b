package relational

import (
	"fmt"
	"slices"
	"strconv"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/mattn/go-sqlite3"
)

// ColumnType is the logical type of a column in a bulk transfer.
type ColumnType int

const (
	Integer ColumnType = iota
	Timestamp
	Float
)

// Column describes one column of a bulk transfer, in transfer order.
type Column struct {
	Name string
	Type ColumnType
}

var (
	primaryColumns = []Column{{"id", Integer}, {"created", Timestamp}, {"value", Float}}
	stagingColumns = []Column{{"id", Integer}, {"value", Float}}
)

// Dialect holds the SQL and the bulk transfer path of one relational backend. Statement templates
// take the primary table as %[1]s and the staging table as %[2]s.
type Dialect struct {
	Name   string
	Driver string
	// Default staging table name
	Staging string
	// Executed once per session, before anything else
	Session []string

	CreatePrimary string
	CreateStaging string
	Truncate      string
	ClearStaging  string
	DropStaging   string
	Merge         string

	// Returns the n-th (1-based) bind parameter
	Placeholder func(n int) string
	// Bulk transfers rows into table inside tx
	Copy copyFunc
}

func (d Dialect) update(table string) string {
	return fmt.Sprintf("update %s set value = %s where id = %s", table, d.Placeholder(1), d.Placeholder(2))
}

func (d Dialect) selectAll(table string) string {
	return fmt.Sprintf("select id, created, value from %s", table)
}

func questionMark(int) string { return "?" }

var dialects = map[string]Dialect{
	"postgres": {
		Name:          "postgres",
		Driver:        "postgres",
		Staging:       "tsdata_staging",
		CreatePrimary: "create table if not exists %[1]s (id bigint primary key, created timestamp not null, value double precision not null)",
		CreateStaging: "create temporary table if not exists %[2]s (id bigint not null, value double precision not null)",
		Truncate:      "truncate %[1]s",
		ClearStaging:  "truncate %[2]s",
		DropStaging:   "drop table if exists %[2]s",
		Merge:         "update %[1]s as d set value = s.value from %[2]s as s where d.id = s.id",
		Placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		Copy:          copyPostgres,
	},
	"sqlserver": {
		Name:          "sqlserver",
		Driver:        "sqlserver",
		Staging:       "#tsdatatemp",
		Session:       []string{"set nocount on"},
		CreatePrimary: "if object_id('%[1]s', 'U') is null create table %[1]s (id bigint primary key, created datetime2 not null, value float not null)",
		CreateStaging: "if object_id('tempdb..%[2]s') is null create table %[2]s (id bigint not null, value float not null)",
		Truncate:      "truncate table %[1]s",
		ClearStaging:  "truncate table %[2]s",
		DropStaging:   "if object_id('tempdb..%[2]s') is not null drop table %[2]s",
		Merge:         "update d set d.value = s.value from %[1]s d inner join %[2]s s on d.id = s.id",
		Placeholder:   func(n int) string { return "@p" + strconv.Itoa(n) },
		Copy:          copySQLServer,
	},
	"mysql": {
		Name:          "mysql",
		Driver:        "mysql",
		Staging:       "tsdata_staging",
		CreatePrimary: "create table if not exists %[1]s (id bigint primary key, created datetime(3) not null, value double not null)",
		CreateStaging: "create temporary table if not exists %[2]s (id bigint not null, value double not null)",
		Truncate:      "truncate table %[1]s",
		ClearStaging:  "delete from %[2]s",
		DropStaging:   "drop temporary table if exists %[2]s",
		Merge:         "update %[1]s d inner join %[2]s s on d.id = s.id set d.value = s.value",
		Placeholder:   questionMark,
		Copy:          copyMySQL,
	},
	"sqlite": sqliteDialect("sqlite", "sqlite"),
	// cgo build of the same engine
	"sqlite3": sqliteDialect("sqlite3", "sqlite3"),
}

func sqliteDialect(name, driver string) Dialect {
	return Dialect{
		Name:          name,
		Driver:        driver,
		Staging:       "tsdata_staging",
		CreatePrimary: "create table if not exists %[1]s (id integer primary key, created timestamp not null, value real not null)",
		CreateStaging: "create temp table if not exists %[2]s (id integer not null, value real not null)",
		Truncate:      "delete from %[1]s",
		ClearStaging:  "delete from %[2]s",
		DropStaging:   "drop table if exists %[2]s",
		Merge:         "update %[1]s set value = s.value from %[2]s as s where %[1]s.id = s.id",
		Placeholder:   questionMark,
		Copy:          copyInserts,
	}
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// Dialects returns the names of all supported dialects, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
