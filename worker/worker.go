package worker

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	engine "github.com/pavel-zeman/mssql-mongodb-performance/benchmark/engines/abstract"
	"github.com/pavel-zeman/mssql-mongodb-performance/clock"
	"github.com/pavel-zeman/mssql-mongodb-performance/workload"
	zlog "github.com/rs/zerolog/log"
)

type State int

const (
	Idle State = iota
	Resetting
	TimingInsert
	TimingBatchUpdate
	TimingMergeUpdate
	TimingSelect
	Done
	Failed
)

var stateNames = [...]string{"idle", "resetting", "timing_insert", "timing_batch_update",
	"timing_merge_update", "timing_select", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var timingStates = map[benchmark.Operation]State{
	benchmark.Insert:      TimingInsert,
	benchmark.BatchUpdate: TimingBatchUpdate,
	benchmark.MergeUpdate: TimingMergeUpdate,
	benchmark.Select:      TimingSelect,
}

var workloadModes = map[benchmark.Operation]workload.Mode{
	benchmark.Insert:      workload.Insert,
	benchmark.BatchUpdate: workload.InPlaceUpdate,
	benchmark.MergeUpdate: workload.MergeUpdate,
}

type Config struct {
	TotalRows    int
	Trials       int
	WarmupTrials int
	// Deadline of each reset and timed operation, 0 for none
	OperationTimeout time.Duration
	// Collect garbage before the clock of each operation is read
	GCAfterOperation bool
}

// Worker runs the trials of one engine, strictly sequentially.
type Worker struct {
	engine   engine.Engine
	clock    *clock.Clock
	reporter benchmark.Reporter
	config   Config
	state    State
	samples  *benchmark.Samples
}

func NewWorker(engine engine.Engine, clock *clock.Clock, reporter benchmark.Reporter, config Config) *Worker {
	return &Worker{
		engine:   engine,
		clock:    clock,
		reporter: reporter,
		config:   config,
		state:    Idle,
	}
}

func (w *Worker) State() State {
	return w.state
}

func (w *Worker) log(msg string) {
	zlog.Info().Str("engine", w.engine.Name()).Msg(msg)
}

// Run executes every trial and returns one result per operation, in execution order. The first
// engine error aborts the run with a *benchmark.TrialError and no results are reported.
func (w *Worker) Run(ctx context.Context) ([]benchmark.Result, error) {
	w.samples = benchmark.NewSamples()
	w.log("Running")

	for trial := 1; trial <= w.config.Trials; trial++ {
		samples, err := w.runTrial(ctx, trial)
		if err != nil {
			w.fail()
			return nil, err
		}
		w.reporter.TrialCompleted(trial, samples)
	}

	results, err := benchmark.AggregateAll(w.samples, w.config.WarmupTrials)
	if err != nil {
		w.fail()
		return nil, err
	}

	w.state = Done
	w.log("Done")
	w.reporter.Completed(results)
	return results, nil
}

func (w *Worker) fail() {
	w.state = Failed
	w.samples = nil
}

func (w *Worker) runTrial(ctx context.Context, trial int) ([]benchmark.Sample, error) {
	zlog.Debug().Int("trial", trial).Msg("Trial started")

	w.state = Resetting
	if err := w.reset(ctx); err != nil {
		return nil, &benchmark.TrialError{Trial: trial, Operation: benchmark.Reset, Err: err}
	}

	samples := make([]benchmark.Sample, 0, len(benchmark.Operations))
	for _, op := range benchmark.Operations {
		sample, err := w.measure(ctx, trial, op)
		if err != nil {
			return nil, &benchmark.TrialError{Trial: trial, Operation: op, Err: err}
		}
		w.samples.Add(sample)
		samples = append(samples, sample)
	}
	return samples, nil
}

func (w *Worker) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.config.OperationTimeout > 0 {
		return context.WithTimeout(ctx, w.config.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (w *Worker) reset(ctx context.Context) error {
	opCtx, cancel := w.operationContext(ctx)
	defer cancel()
	return asTimeout(w.engine.Reset(opCtx))
}

// Times one operation. Rows are generated and the deadline armed before the clock starts.
func (w *Worker) measure(ctx context.Context, trial int, op benchmark.Operation) (benchmark.Sample, error) {
	var rows []workload.Row
	if mode, ok := workloadModes[op]; ok {
		rows = workload.Collect(w.config.TotalRows, mode)
	}
	opCtx, cancel := w.operationContext(ctx)
	defer cancel()

	w.state = timingStates[op]
	var selected []workload.Row
	var err error

	watch := w.clock.Start()
	switch op {
	case benchmark.Insert:
		err = w.engine.BulkInsert(opCtx, rows)
	case benchmark.BatchUpdate:
		err = w.engine.BatchUpdate(opCtx, rows)
	case benchmark.MergeUpdate:
		err = w.engine.MergeUpdate(opCtx, rows)
	case benchmark.Select:
		selected, err = w.engine.Select(opCtx)
	}
	if w.config.GCAfterOperation {
		runtime.GC()
	}
	sample := benchmark.Sample{Operation: op, ElapsedMs: watch.Elapsed(), CPUMs: watch.CPUElapsed()}

	if err != nil {
		return benchmark.Sample{}, asTimeout(err)
	}

	event := zlog.Debug().Int("trial", trial).Str("operation", string(op)).
		Int64("elapsed_ms", sample.ElapsedMs).Int64("cpu_ms", sample.CPUMs)
	if op == benchmark.Select {
		event = event.Int("rows", len(selected))
	}
	event.Msg("Operation completed")
	return sample, nil
}

// Engines classify their own deadlines; this catches any that slip through unclassified.
func asTimeout(err error) error {
	var timeout *benchmark.TimeoutError
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &timeout) {
		return &benchmark.TimeoutError{Err: err}
	}
	return err
}
