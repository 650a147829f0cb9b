// Package workload generates the deterministic row sets written and rewritten by every trial.
// Values are pure functions of the row id so that successive trials, and runs against
// different engines, operate on identical data.
package workload

import (
	"fmt"
	"iter"
	"time"
)

// Created is the timestamp stored in every inserted row.
var Created = time.Unix(1000, 0).UTC()

// Row is a single record of the primary dataset.
type Row struct {
	ID      int64
	Created time.Time
	Value   float64
}

// Mode selects the value function applied to each row id.
type Mode int

const (
	// Insert produces the initial dataset: value = id / 10.
	Insert Mode = iota
	// InPlaceUpdate produces the row-by-row update: value = id / 5.
	InPlaceUpdate
	// MergeUpdate produces the staged update: value = id / 10 + 1.
	MergeUpdate
)

func (m Mode) String() string {
	switch m {
	case Insert:
		return "insert"
	case InPlaceUpdate:
		return "in-place-update"
	case MergeUpdate:
		return "merge-update"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Value returns the value of row id under mode.
func Value(mode Mode, id int64) float64 {
	switch mode {
	case InPlaceUpdate:
		return float64(id) / 5.0
	case MergeUpdate:
		return float64(id)/10.0 + 1.0
	default:
		return float64(id) / 10.0
	}
}

// Rows lazily yields exactly total rows with ids 0..total-1 in increasing order.
func Rows(total int, mode Mode) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := 0; i < total; i++ {
			id := int64(i)
			if !yield(Row{ID: id, Created: Created, Value: Value(mode, id)}) {
				return
			}
		}
	}
}

// Collect materializes Rows so that generation can run outside a timed section.
func Collect(total int, mode Mode) []Row {
	rows := make([]Row, 0, max(total, 0))
	for r := range Rows(total, mode) {
		rows = append(rows, r)
	}
	return rows
}
