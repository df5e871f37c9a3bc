// Package split cuts linestrings into segments of bounded length and
// writes the segments as new features.
package split

import (
	"github.com/paulmach/orb"

	"github.com/omniscale/linesplit/geo"
)

// ringSkipMaxPoints: closed linestrings with more points are kept even
// when they are shorter than the minimum length, so small genuine
// rings (roundabouts) survive while degenerate closed slivers are
// dropped. The threshold is policy carried over from earlier versions
// of this tool, not a derived geometric property.
const ringSkipMaxPoints = 5

// Splitter holds the per-run splitting configuration. The distance
// metric mode is fixed here once and used for every length
// computation of the run.
type Splitter struct {
	Metric    geo.Metric
	MinLength float64
	MaxLength float64
}

func closed(ls orb.LineString) bool {
	return len(ls) > 1 && ls[0] == ls[len(ls)-1]
}

// shouldSkip reports whether ls is dropped entirely: lines shorter
// than MinLength are skipped, except closed rings with more than
// ringSkipMaxPoints points which are always kept.
func (s *Splitter) shouldSkip(ls orb.LineString) bool {
	if closed(ls) && len(ls) > ringSkipMaxPoints {
		return false
	}
	return s.Metric.Length(ls) < s.MinLength
}

// Split walks ls and calls emit for every segment: whenever the
// accumulated length since the last cut exceeds MaxLength (strictly),
// the buffered points are emitted and accumulation restarts at the
// current point. The cut point is shared, it ends one segment and
// starts the next. The trailing remainder is emitted as-is and may be
// shorter than MaxLength. Every emitted segment has at least two
// points.
func (s *Splitter) Split(ls orb.LineString, emit func(orb.LineString) error) error {
	if len(ls) == 0 {
		return nil
	}
	length := 0.0
	part := orb.LineString{ls[0]}
	for i := 1; i < len(ls); i++ {
		length += s.Metric.Distance(ls[i-1], ls[i])
		part = append(part, ls[i])
		if length > s.MaxLength {
			if err := emit(part); err != nil {
				return err
			}
			part = orb.LineString{ls[i]}
			length = 0.0
		}
	}
	if len(part) > 1 {
		return emit(part)
	}
	return nil
}
