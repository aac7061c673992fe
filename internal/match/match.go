// Package match classifies a face descriptor against the known identities.
package match

import (
	"math"

	"github.com/andresmejia3/rollcall/internal/types"
)

// DefaultTolerance is the maximum accepted distance for a positive match.
const DefaultTolerance = 0.55

// EuclideanDist returns the L2 distance between two descriptors.
// Descriptors of different length are infinitely far apart.
func EuclideanDist(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// FaceDistances returns the distance from query to every known descriptor, in order.
func FaceDistances(known [][]float64, query []float64) []float64 {
	distances := make([]float64, len(known))
	for i, k := range known {
		distances[i] = EuclideanDist(k, query)
	}
	return distances
}

// CompareFaces reports, per known descriptor, whether it is within tolerance of query.
// It is computed independently of FaceDistances so that Match can require both to agree.
func CompareFaces(known [][]float64, query []float64, tolerance float64) []bool {
	matches := make([]bool, len(known))
	for i, k := range known {
		matches[i] = EuclideanDist(k, query) <= tolerance
	}
	return matches
}

// Match classifies query against the known set.
// The nearest descriptor wins (first one on exact ties) and is accepted only if
// its distance is below tolerance and CompareFaces agrees.
// Unknown results still carry the best distance seen, or +Inf when nothing is known.
func Match(known [][]float64, names []string, query []float64, tolerance float64) types.MatchResult {
	result := types.MatchResult{Name: types.Unknown, Index: -1, Distance: math.Inf(1)}
	if len(known) == 0 {
		return result
	}

	distances := FaceDistances(known, query)
	best := 0
	for i, d := range distances {
		if d < distances[best] {
			best = i
		}
	}
	result.Distance = distances[best]

	matches := CompareFaces(known, query, tolerance)
	if matches[best] && distances[best] < tolerance && best < len(names) {
		result.Name = names[best]
		result.Index = best
	}
	return result
}
