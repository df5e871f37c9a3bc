package geojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/omniscale/linesplit/dataset"
)

const roadsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "A1", "lanes": 4},
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.1, 0]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "B2", "surface": "asphalt"},
      "geometry": {"type": "MultiLineString", "coordinates": [[[1, 1], [1, 1.1]], [[2, 2], [2, 2.1]]]}
    }
  ]
}`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roads.geojson")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	src, err := Open(writeTemp(t, roadsJSON))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	layer := src.Layer()
	if !layer.Geographic {
		t.Error("geojson layer should be geographic")
	}
	if layer.Name != "roads" {
		t.Errorf("layer name = %q", layer.Name)
	}
	if len(layer.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %v", layer.Fields)
	}
	if layer.Fields[0].Name != "lanes" && layer.Fields[0].Name != "name" {
		t.Errorf("unexpected first field %v", layer.Fields[0])
	}

	first, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := first.Geometry.(orb.LineString); !ok {
		t.Fatalf("expected linestring, got %T", first.Geometry)
	}
	second, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := second.Geometry.(orb.MultiLineString); !ok {
		t.Fatalf("expected multilinestring, got %T", second.Geometry)
	}
	if f, err := src.Next(); err != nil || f != nil {
		t.Fatalf("expected end of source, got %v, %v", f, err)
	}

	if err := src.Reset(); err != nil {
		t.Fatal(err)
	}
	if f, err := src.Next(); err != nil || f == nil {
		t.Fatalf("expected first feature after reset, got %v, %v", f, err)
	}
}

func TestOpenRejectsOtherGeometry(t *testing.T) {
	path := writeTemp(t, `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}
	  ]
	}`)
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for point geometry")
	}
}

func TestRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.geojson")
	sink, err := Create(path, dataset.CreationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	fields := []dataset.Field{
		{Name: "name", Type: dataset.StringType},
		{Name: "lanes", Type: dataset.IntType},
	}
	if err := sink.CreateLayer(dataset.Layer{Name: "segments", Fields: fields}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Begin(); err != nil {
		t.Fatal(err)
	}
	err = sink.Write(&dataset.Feature{
		Values:   []interface{}{"A1", 4},
		Geometry: orb.LineString{{0, 0}, {0.1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	feature, err := src.Next()
	if err != nil || feature == nil {
		t.Fatalf("expected feature, got %v, %v", feature, err)
	}
	ls, ok := feature.Geometry.(orb.LineString)
	if !ok || len(ls) != 2 {
		t.Fatalf("unexpected geometry %v", feature.Geometry)
	}
	fieldIdx := map[string]int{}
	for i, field := range src.Layer().Fields {
		fieldIdx[field.Name] = i
	}
	if name := feature.Values[fieldIdx["name"]]; name != "A1" {
		t.Errorf("name = %v", name)
	}
}
