package facematch

import "math"

// Match is an accepted comparison between an observed face and a known identity.
type Match struct {
	Identity string
	Index    int
	Distance float64
}

// FaceDistance returns the Euclidean distance between two descriptors.
// Lower distance means more similar faces.
func FaceDistance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// FaceDistances returns the distance from d to every known descriptor, in order.
func FaceDistances(known []Known, d Descriptor) []float64 {
	distances := make([]float64, len(known))
	for i, k := range known {
		distances[i] = FaceDistance(k.Descriptor, d)
	}
	return distances
}

// CompareFaces reports, per known descriptor, whether d is within tolerance of it.
func CompareFaces(known []Known, d Descriptor, tolerance float64) []bool {
	matches := make([]bool, len(known))
	for i, k := range known {
		matches[i] = FaceDistance(k.Descriptor, d) <= tolerance
	}
	return matches
}

// BestMatch returns the closest known identity if that closest entry also passes
// the tolerance test. A closer rejected entry hides any farther accepted one.
func BestMatch(known []Known, d Descriptor, tolerance float64) (Match, bool) {
	if len(known) == 0 {
		return Match{}, false
	}

	matches := CompareFaces(known, d, tolerance)
	distances := FaceDistances(known, d)

	best := 0
	for i := 1; i < len(distances); i++ {
		if distances[i] < distances[best] {
			best = i
		}
	}
	if !matches[best] {
		return Match{}, false
	}

	return Match{
		Identity: known[best].Identity,
		Index:    best,
		Distance: distances[best],
	}, true
}
