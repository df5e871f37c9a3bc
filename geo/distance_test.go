package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestPlanarDistance(t *testing.T) {
	m := Metric{}
	tests := []struct {
		a, b     orb.Point
		expected float64
	}{
		{orb.Point{0, 0}, orb.Point{0, 0}, 0},
		{orb.Point{0, 0}, orb.Point{3, 4}, 5},
		{orb.Point{-1, -1}, orb.Point{2, 3}, 5},
		{orb.Point{0, 0}, orb.Point{0, 1000}, 1000},
	}
	for _, test := range tests {
		if d := m.Distance(test.a, test.b); d != test.expected {
			t.Errorf("distance(%v, %v) = %v, expected %v", test.a, test.b, d, test.expected)
		}
	}
}

func TestGeographicDistance(t *testing.T) {
	m := Metric{Geographic: true}

	// one degree of latitude on the approximation sphere
	expected := EarthRadiusMeters * math.Pi / 180.0
	if d := m.Distance(orb.Point{0, 0}, orb.Point{0, 1}); math.Abs(d-expected) > 1e-6 {
		t.Errorf("distance = %v, expected %v", d, expected)
	}

	// identical coordinate deltas give different results in
	// geographic and planar mode
	planar := Metric{}.Distance(orb.Point{8, 53}, orb.Point{8.01, 53.01})
	geographic := m.Distance(orb.Point{8, 53}, orb.Point{8.01, 53.01})
	if planar == geographic {
		t.Errorf("planar %v == geographic %v", planar, geographic)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	for _, m := range []Metric{{}, {Geographic: true}} {
		a := orb.Point{8.1, 53.2}
		b := orb.Point{8.3, 52.9}
		if m.Distance(a, b) != m.Distance(b, a) {
			t.Errorf("distance not symmetric for %+v", m)
		}
		if m.Distance(a, a) != 0 {
			t.Errorf("distance(a, a) != 0 for %+v", m)
		}
	}
}

func TestLength(t *testing.T) {
	m := Metric{}
	ls := orb.LineString{{0, 0}, {0, 1000}, {0, 2500}}
	if l := m.Length(ls); l != 2500 {
		t.Errorf("length = %v, expected 2500", l)
	}
	if l := m.Length(orb.LineString{{5, 5}}); l != 0 {
		t.Errorf("length of single point = %v, expected 0", l)
	}
	if l := m.Length(nil); l != 0 {
		t.Errorf("length of empty line = %v, expected 0", l)
	}
}
