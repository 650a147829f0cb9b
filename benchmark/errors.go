package benchmark

import (
	"fmt"
)

// ConnectionError reports an unusable backend connection.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BulkTransferError reports a failed bulk load. The target dataset holds none of the rows.
type BulkTransferError struct {
	Target string
	Err    error
}

func (e *BulkTransferError) Error() string {
	return fmt.Sprintf("bulk transfer into %s: %v", e.Target, e.Err)
}

func (e *BulkTransferError) Unwrap() error { return e.Err }

// UnknownIndex marks a PartialBatchError whose progress the backend did not report.
const UnknownIndex = -1

// PartialBatchError reports a batch update that failed part way. LastIndex is the highest row
// index the backend acknowledged before failing, or UnknownIndex.
type PartialBatchError struct {
	LastIndex int
	Err       error
}

func (e *PartialBatchError) Error() string {
	if e.LastIndex == UnknownIndex {
		return fmt.Sprintf("batch update failed at unknown row: %v", e.Err)
	}
	return fmt.Sprintf("batch update failed after row %d: %v", e.LastIndex, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// InsufficientSamplesError reports a series too short to trim and average once the warm-up
// prefix is skipped.
type InsufficientSamplesError struct {
	Operation Operation
	Samples   int
	Warmup    int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("%s: %d samples leave %d after skipping %d warm-up trials, at least 2 are required",
		e.Operation, e.Samples, max(e.Samples-e.Warmup, 0), e.Warmup)
}

// TrialError identifies the trial (1-based) and operation that aborted a run.
type TrialError struct {
	Trial     int
	Operation Operation
	Err       error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %d, %s: %v", e.Trial, e.Operation, e.Err)
}

func (e *TrialError) Unwrap() error { return e.Err }
