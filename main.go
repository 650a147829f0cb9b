package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	engine "github.com/pavel-zeman/mssql-mongodb-performance/benchmark/engines/abstract"
	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark/engines/document"
	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark/engines/relational"
	"github.com/pavel-zeman/mssql-mongodb-performance/clock"
	dbutils "github.com/pavel-zeman/mssql-mongodb-performance/dbUtils"
	"github.com/pavel-zeman/mssql-mongodb-performance/report"
	"github.com/pavel-zeman/mssql-mongodb-performance/worker"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Prepare zerolog
func setupLogging(disableLog bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var zlevel zerolog.Level
	if disableLog {
		zlevel = zerolog.Disabled
	} else if level == "info" {
		zlevel = zerolog.InfoLevel
	} else {
		zlevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(zlevel)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zlog.Error().Err(err).Msg("Benchmark failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		disableLog bool
		logLevel   string
	)

	root := &cobra.Command{
		Use:   "bulkbench",
		Short: "Compares bulk insert, update and select performance of SQL databases and MongoDB",
		Long: `bulkbench loads the same deterministic rows into a relational table or a MongoDB
collection, updates them row by row and through a staged merge, and reads them back.
Every operation is timed for wall-clock and CPU time over repeated trials, and the
trimmed mean of each operation is reported after the warm-up trials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(disableLog, logLevel)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&disableLog, "no-log", false, "Disables the log")
	flags.StringVar(&logLevel, "level", "debug", "Log level (info|debug)")

	root.AddCommand(newRunCmd(), newEnginesCmd())

	return root
}

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the supported engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range engineNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		configFile string
		overrides  BenchmarkArgs
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark against one engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := buildArgs(configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, args, &overrides)
			if err := args.validate(); err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), args)
		},
	}

	defaults := defaultArgs()
	flags := cmd.Flags()
	flags.StringVar(&configFile, "conf", "", "Benchmark config file")
	flags.StringVar(&overrides.Engine, "engine", "", "Engine to benchmark (see the engines command)")
	flags.StringVar(&overrides.Connection, "connection", "", "Connection string or MongoDB URI")
	flags.StringVar(&overrides.Database, "database", defaults.Database, "MongoDB database")
	flags.StringVar(&overrides.Table, "table", defaults.Table, "Primary table or collection")
	flags.StringVar(&overrides.StagingTable, "staging-table", "", "Staging table or collection (default: per engine)")
	flags.IntVar(&overrides.TotalRows, "rows", defaults.TotalRows, "Rows per trial")
	flags.IntVar(&overrides.Trials, "trials", defaults.Trials, "Number of trials")
	flags.IntVar(&overrides.WarmupTrials, "warmup", defaults.WarmupTrials, "Leading trials excluded from the results")
	flags.DurationVar(&overrides.OperationTimeout, "operation-timeout", 0, "Deadline of each operation (0 = none)")
	flags.BoolVar(&overrides.GCAfterOperation, "gc", false, "Collect garbage at the end of each timed operation")
	flags.BoolVar(&overrides.OrderedWrites, "ordered", false, "Use ordered MongoDB bulk writes")
	flags.BoolVar(&overrides.CreateSchema, "create-schema", false, "Create the primary table if missing")
	flags.StringVar(&overrides.Format, "format", defaults.Format, "Summary format (table|json|csv)")

	return cmd
}

// Copies the flags given on the command line over the config file values.
func applyFlags(cmd *cobra.Command, args *BenchmarkArgs, flags *BenchmarkArgs) {
	changed := cmd.Flags().Changed
	if changed("engine") {
		args.Engine = flags.Engine
	}
	if changed("connection") {
		args.Connection = flags.Connection
	}
	if changed("database") {
		args.Database = flags.Database
	}
	if changed("table") {
		args.Table = flags.Table
	}
	if changed("staging-table") {
		args.StagingTable = flags.StagingTable
	}
	if changed("rows") {
		args.TotalRows = flags.TotalRows
	}
	if changed("trials") {
		args.Trials = flags.Trials
	}
	if changed("warmup") {
		args.WarmupTrials = flags.WarmupTrials
	}
	if changed("operation-timeout") {
		args.OperationTimeout = flags.OperationTimeout
	}
	if changed("gc") {
		args.GCAfterOperation = flags.GCAfterOperation
	}
	if changed("ordered") {
		args.OrderedWrites = flags.OrderedWrites
	}
	if changed("format") {
		args.Format = flags.Format
	}
	if changed("create-schema") {
		args.CreateSchema = flags.CreateSchema
	}
}

// Implemented by engines that can create their primary dataset
type schemaCreator interface {
	CreateSchema(ctx context.Context) error
}

// Connects to the backend of args.Engine. The returned function releases the connection.
func createEngine(ctx context.Context, args *BenchmarkArgs) (engine.Engine, func() error, error) {
	if args.Engine == mongoEngine {
		client, err := dbutils.OpenMongo(ctx, args.Connection)
		if err != nil {
			return nil, nil, err
		}
		staging := args.StagingTable
		if staging == "" {
			staging = args.Table + "_staging"
		}
		db := client.Database(args.Database)
		e := document.New(db.Collection(args.Table), db.Collection(staging), document.Options{Ordered: args.OrderedWrites})
		return e, func() error { return dbutils.CloseMongo(client, 10*time.Second) }, nil
	}

	dialect, ok := relational.Lookup(args.Engine)
	if !ok {
		return nil, nil, fmt.Errorf("engine '%s' not found", args.Engine)
	}
	db, conn, err := dbutils.OpenSQL(ctx, dialect.Driver, args.Connection)
	if err != nil {
		return nil, nil, err
	}
	e := relational.New(conn, dialect, args.Table, args.StagingTable)
	return e, func() error { return dbutils.CloseSQL(db, conn) }, nil
}

func runBenchmark(ctx context.Context, args *BenchmarkArgs) (err error) {
	format, err := report.ParseFormat(args.Format)
	if err != nil {
		return err
	}
	c, err := clock.New()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	zlog.Info().Str("run", runID).Str("engine", args.Engine).Int("rows", args.TotalRows).
		Int("trials", args.Trials).Int("warmup", args.WarmupTrials).Msg("Run started")

	e, closeEngine, err := createEngine(ctx, args)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeEngine(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close %s: %w", args.Engine, closeErr))
		}
	}()

	if sc, ok := e.(schemaCreator); ok && args.CreateSchema {
		if err := sc.CreateSchema(ctx); err != nil {
			return err
		}
	}

	reporter := report.New(os.Stdout, format, report.Summary{
		RunID:        runID,
		Engine:       e.Name(),
		Configs:      e.GetConfigs(),
		TotalRows:    args.TotalRows,
		Trials:       args.Trials,
		WarmupTrials: args.WarmupTrials,
	})
	w := worker.NewWorker(e, c, reporter, worker.Config{
		TotalRows:        args.TotalRows,
		Trials:           args.Trials,
		WarmupTrials:     args.WarmupTrials,
		OperationTimeout: args.OperationTimeout,
		GCAfterOperation: args.GCAfterOperation,
	})

	_, runErr := w.Run(ctx)
	// the staging dataset is dropped even when the run was interrupted
	if finalizeErr := e.Finalize(context.WithoutCancel(ctx)); finalizeErr != nil {
		zlog.Warn().Err(finalizeErr).Str("run", runID).Msg("Finalize failed")
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", runID, runErr)
	}
	if err := reporter.Err(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	zlog.Info().Str("run", runID).Str("state", w.State().String()).Msg("Run ended")
	return nil
}
