package benchmark

import (
	"github.com/pavel-zeman/mssql-mongodb-performance/util"
)

// Aggregate skips the first warmup samples of series, drops the single largest remaining value
// and averages the rest. Elapsed and CPU time are trimmed independently, so their dropped
// outliers may come from different trials.
func Aggregate(op Operation, series Series, warmup int) (Result, error) {
	skip := min(max(warmup, 0), len(series))
	remaining := series[skip:]
	if len(remaining) < 2 {
		return Result{}, &InsufficientSamplesError{Operation: op, Samples: len(series), Warmup: warmup}
	}

	elapsed := make([]int64, len(remaining))
	cpu := make([]int64, len(remaining))
	for i, s := range remaining {
		elapsed[i] = s.ElapsedMs
		cpu[i] = s.CPUMs
	}

	return Result{
		Operation:     op,
		MeanElapsedMs: util.TrimmedMean(elapsed),
		MeanCPUMs:     util.TrimmedMean(cpu),
	}, nil
}

// AggregateAll aggregates every operation in execution order. It returns either all results or
// the first error.
func AggregateAll(samples *Samples, warmup int) ([]Result, error) {
	results := make([]Result, 0, len(Operations))
	for _, op := range Operations {
		r, err := Aggregate(op, samples.Series(op), warmup)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
