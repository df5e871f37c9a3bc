// Package geo provides the distance metric used for all length
// computations. The metric is selected once per run: planar Euclidean
// distance in the source units, or a spherical approximation for
// geographic (longitude/latitude) coordinates.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the sphere radius of the geographic
// approximation.
const EarthRadiusMeters = 6372797.560856

// Metric computes distances between coordinate pairs. Geographic
// selects the spherical approximation, otherwise distances are planar
// Euclidean in the native units of the coordinates.
type Metric struct {
	Geographic bool
}

func degToRad(degree float64) float64 {
	return degree * (math.Pi / 180.0)
}

// Distance returns the distance between a and b.
//
// In geographic mode the coordinate deltas are scaled per axis by the
// Earth radius. This is a rectangular approximation, not great-circle
// distance. It is only accurate for the short segments compared
// against the split threshold. Changing it to a real geodesic formula
// would move the split points of every geographic run.
func (m Metric) Distance(a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if m.Geographic {
		dx = EarthRadiusMeters * degToRad(dx)
		dy = EarthRadiusMeters * degToRad(dy)
	}
	return math.Sqrt(dx*dx + dy*dy)
}

// Length returns the sum of the consecutive point distances of ls.
func (m Metric) Length(ls orb.LineString) float64 {
	var length float64
	for i := 1; i < len(ls); i++ {
		length += m.Distance(ls[i-1], ls[i])
	}
	return length
}
