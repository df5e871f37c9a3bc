package shp

import (
	"os"
	"path/filepath"
	"testing"

	shapefile "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/omniscale/linesplit/dataset"
)

func newTestPolyLine(parts [][]orb.Point) *shapefile.PolyLine {
	polyline := &shapefile.PolyLine{}
	for _, part := range parts {
		polyline.Parts = append(polyline.Parts, int32(len(polyline.Points)))
		for _, point := range part {
			polyline.Points = append(polyline.Points, shapefile.Point{X: point[0], Y: point[1]})
		}
	}
	polyline.NumParts = int32(len(polyline.Parts))
	polyline.NumPoints = int32(len(polyline.Points))
	return polyline
}

func TestRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segments.shp")

	sink, err := Create(path, dataset.CreationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	layer := dataset.Layer{
		Name:       "segments",
		Geographic: true,
		Fields: []dataset.Field{
			{Name: "name", Type: dataset.StringType, Width: 20},
			{Name: "lanes", Type: dataset.IntType},
			{Name: "width", Type: dataset.FloatType},
		},
	}
	if err := sink.CreateLayer(layer); err != nil {
		t.Fatal(err)
	}
	features := []*dataset.Feature{
		{
			Values:   []interface{}{"A1", int64(4), 7.5},
			Geometry: orb.LineString{{8, 53}, {8.1, 53}},
		},
		{
			Values:   []interface{}{"B2", nil, nil},
			Geometry: orb.LineString{{9, 53}, {9, 53.1}, {9.1, 53.1}},
		},
	}
	for _, feature := range features {
		if err := sink.Write(feature); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	// the coordinate system sidecar is written for geographic layers
	prj, err := os.ReadFile(filepath.Join(dir, "segments.prj"))
	if err != nil {
		t.Fatal(err)
	}
	if len(prj) == 0 {
		t.Fatal("empty .prj file")
	}

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if !src.Layer().Geographic {
		t.Error("layer should be geographic, .prj is GEOGCS")
	}
	if n := len(src.Layer().Fields); n != 3 {
		t.Fatalf("expected 3 fields, got %d", n)
	}

	first, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	ls, ok := first.Geometry.(orb.LineString)
	if !ok || len(ls) != 2 {
		t.Fatalf("unexpected geometry %v", first.Geometry)
	}
	if first.Values[0] != "A1" {
		t.Errorf("name = %v", first.Values[0])
	}
	if first.Values[1] != int64(4) {
		t.Errorf("lanes = %v", first.Values[1])
	}

	second, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if second == nil {
		t.Fatal("missing second feature")
	}
	if end, err := src.Next(); err != nil || end != nil {
		t.Fatalf("expected end of source, got %v, %v", end, err)
	}

	if err := src.Reset(); err != nil {
		t.Fatal(err)
	}
	if f, err := src.Next(); err != nil || f == nil {
		t.Fatalf("expected first feature after reset, got %v, %v", f, err)
	}
}

func TestGeometryParts(t *testing.T) {
	// two-part polylines become multilinestrings
	polyline := newTestPolyLine([][]orb.Point{
		{{0, 0}, {1, 0}},
		{{2, 0}, {3, 0}, {4, 0}},
	})
	geom := geometry(polyline)
	mls, ok := geom.(orb.MultiLineString)
	if !ok {
		t.Fatalf("expected multilinestring, got %T", geom)
	}
	if len(mls) != 2 || len(mls[0]) != 2 || len(mls[1]) != 3 {
		t.Fatalf("unexpected parts: %v", mls)
	}

	single := geometry(newTestPolyLine([][]orb.Point{{{0, 0}, {1, 1}}}))
	if _, ok := single.(orb.LineString); !ok {
		t.Fatalf("expected linestring, got %T", single)
	}
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		raw      string
		typ      dataset.FieldType
		expected interface{}
	}{
		{"  A1 ", dataset.StringType, "A1"},
		{"42", dataset.IntType, int64(42)},
		{"3.25", dataset.FloatType, 3.25},
		{"", dataset.StringType, nil},
		{"\x00\x00", dataset.IntType, nil},
	}
	for _, test := range tests {
		if v := attributeValue(test.raw, test.typ); v != test.expected {
			t.Errorf("attributeValue(%q, %s) = %v, expected %v", test.raw, test.typ, v, test.expected)
		}
	}
}
