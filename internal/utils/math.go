package utils

import "math"

// bytesPerMB is the divisor used for every size in a snapshot (1024²)
const bytesPerMB = 1024 * 1024

// Round rounds a float64 value to 2 decimal places
func Round(val float64) float64 {
	// Use proper rounding that works for both positive and negative numbers
	return math.Round(val*100) / 100
}

// BytesToMB converts a byte count to megabytes rounded to 2 decimal places
func BytesToMB(bytes uint64) float64 {
	return Round(float64(bytes) / bytesPerMB)
}
