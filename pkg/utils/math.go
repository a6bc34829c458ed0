package utils

import "math"

// Clamp clamps a value between min and max
func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round rounds a float64 to the specified number of decimal places
func Round(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// WorkerCount resolves a requested pool size against the CPU count. The pool
// leaves one CPU free and never drops below one worker; a request of zero
// or less picks min(DefaultWorkers, cpus-1).
func WorkerCount(requested, cpus int) int {
	limit := Clamp(cpus-1, 1, math.MaxInt)
	if requested <= 0 {
		requested = DefaultWorkers
	}
	return Clamp(requested, 1, limit)
}
