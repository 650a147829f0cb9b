// Package benchmark holds the measurement model shared by the trial runner, the engines and the
// reporters: operation kinds, per-trial samples and the trimmed-mean aggregate.
package benchmark

// Operation identifies one timed step of a trial.
type Operation string

const (
	Insert      Operation = "insert"
	BatchUpdate Operation = "batch_update"
	MergeUpdate Operation = "merge_update"
	Select      Operation = "select"

	// Reset is never timed; it labels failures of the untimed reset step.
	Reset Operation = "reset"
)

// Operations lists the timed operations in the order every trial executes them.
var Operations = []Operation{Insert, BatchUpdate, MergeUpdate, Select}

// Sample is the measurement of one operation in one trial.
type Sample struct {
	Operation Operation `json:"operation"`
	ElapsedMs int64     `json:"elapsed_ms"`
	CPUMs     int64     `json:"cpu_ms"`
}

// Series holds the samples of one operation in trial order.
type Series []Sample

// Result is the trimmed mean of an operation's series.
type Result struct {
	Operation     Operation `json:"operation"`
	MeanElapsedMs int64     `json:"mean_elapsed_ms"`
	MeanCPUMs     int64     `json:"mean_cpu_ms"`
}

// Samples collects the series of every operation for the lifetime of a run.
type Samples struct {
	series map[Operation]Series
}

func NewSamples() *Samples {
	return &Samples{series: map[Operation]Series{}}
}

// Add appends s to the series of its operation.
func (s *Samples) Add(sample Sample) {
	s.series[sample.Operation] = append(s.series[sample.Operation], sample)
}

// Series returns the samples recorded for op, in trial order.
func (s *Samples) Series(op Operation) Series {
	return s.series[op]
}

// Reporter receives progress and final results. Formatting and destination are up to the
// implementation.
type Reporter interface {
	// Called after every successful trial with that trial's samples, in operation order
	TrialCompleted(trial int, samples []Sample)
	// Called once, after all trials, with one result per operation
	Completed(results []Result)
}
