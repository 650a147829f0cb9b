package util

import (
	"slices"
)

// Returns the integer mean of values after dropping the single largest one.
// values must hold at least 2 elements; it is not modified.
func TrimmedMean(values []int64) int64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total int64
	for _, v := range sorted[:len(sorted)-1] {
		total += v
	}

	return total / int64(len(sorted)-1)
}
