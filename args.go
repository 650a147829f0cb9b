package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark/engines/relational"
	"github.com/pavel-zeman/mssql-mongodb-performance/report"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const mongoEngine = "mongodb"

// Read when neither the config file nor the flags set a connection string
const connectionEnv = "BULKBENCH_CONNECTION"

type BenchmarkArgs struct {
	// One of relational.Dialects() or "mongodb"
	Engine     string `yaml:"engine"`
	Connection string `yaml:"connection"`
	// mongodb only
	Database         string        `yaml:"database"`
	Table            string        `yaml:"table"`
	StagingTable     string        `yaml:"stagingTable"`
	TotalRows        int           `yaml:"totalRows"`
	Trials           int           `yaml:"trials"`
	WarmupTrials     int           `yaml:"warmupTrials"`
	OperationTimeout time.Duration `yaml:"operationTimeout"`
	GCAfterOperation bool          `yaml:"gcAfterOperation"`
	OrderedWrites    bool          `yaml:"orderedWrites"`
	// Create the primary table before the run, if the engine supports it
	CreateSchema bool `yaml:"createSchema"`
	Format           string        `yaml:"format"`
}

var identifier = regexp.MustCompile(`^#?[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func defaultArgs() BenchmarkArgs {
	return BenchmarkArgs{
		Database:     "test",
		Table:        "tsdata",
		TotalRows:    100000,
		Trials:       21,
		WarmupTrials: 10,
		Format:       string(report.Table),
	}
}

// Returns the defaults overlaid with the contents of configFile, if given.
func buildArgs(configFile string) (*BenchmarkArgs, error) {
	args := defaultArgs()
	if configFile == "" {
		return &args, nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configFile, err)
	}
	return &args, nil
}

func engineNames() []string {
	return append(relational.Dialects(), mongoEngine)
}

func (a *BenchmarkArgs) validate() error {
	if a.Connection == "" {
		a.Connection = os.Getenv(connectionEnv)
	}

	var errs []error
	if !slices.Contains(engineNames(), a.Engine) {
		errs = append(errs, fmt.Errorf("unknown engine %q (want one of %v)", a.Engine, engineNames()))
	}
	if a.Connection == "" {
		errs = append(errs, fmt.Errorf("missing connection (set it in the config, with --connection or %s)", connectionEnv))
	}
	if a.TotalRows <= 0 {
		errs = append(errs, fmt.Errorf("totalRows must be positive, got %d", a.TotalRows))
	}
	if a.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trials must be positive, got %d", a.Trials))
	}
	if a.WarmupTrials < 0 {
		errs = append(errs, fmt.Errorf("warmupTrials must not be negative, got %d", a.WarmupTrials))
	}
	if a.OperationTimeout < 0 {
		errs = append(errs, fmt.Errorf("operationTimeout must not be negative, got %s", a.OperationTimeout))
	}
	if !identifier.MatchString(a.Table) {
		errs = append(errs, fmt.Errorf("invalid table name %q", a.Table))
	}
	if a.StagingTable != "" && !identifier.MatchString(a.StagingTable) {
		errs = append(errs, fmt.Errorf("invalid staging table name %q", a.StagingTable))
	}
	if a.Engine == mongoEngine && a.Database == "" {
		errs = append(errs, errors.New("missing database"))
	}
	if _, err := report.ParseFormat(a.Format); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	if a.Trials-a.WarmupTrials < 2 {
		zlog.Warn().Int("trials", a.Trials).Int("warmupTrials", a.WarmupTrials).
			Msg("Fewer than 2 trials remain after the warm-up, the run cannot produce results")
	}
	return nil
}
