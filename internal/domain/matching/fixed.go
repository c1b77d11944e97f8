package matching

import "math"

// Costs enter the network as fixed-point integers so that every algorithm
// sums exactly the same values.
const fixedPointScale = 1_000_000

// toFixed converts a cost to fixed-point.
func toFixed(v float64) int64 {
	return int64(math.Round(v * fixedPointScale))
}

// fromFixed converts a fixed-point cost back to a float.
func fromFixed(v int64) float64 {
	return float64(v) / fixedPointScale
}
