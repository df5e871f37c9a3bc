package gpkg

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"github.com/omniscale/linesplit/dataset"
)

func TestGeometryRoundtrip(t *testing.T) {
	ls := orb.LineString{{8, 53}, {8.1, 53.05}, {8.2, 53}}
	blob, err := encodeGeometry(ls, 4326)
	if err != nil {
		t.Fatal(err)
	}
	if blob[0] != 'G' || blob[1] != 'P' {
		t.Fatalf("missing magic in %v", blob[:4])
	}
	geom, err := decodeGeometry(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(geom, ls) {
		t.Fatalf("%v != %v", geom, ls)
	}
}

func TestDecodeGeometryErrors(t *testing.T) {
	if _, err := decodeGeometry([]byte("XXinvalid")); err == nil {
		t.Error("expected error for bad magic")
	}
	if _, err := decodeGeometry([]byte{'G', 'P'}); err == nil {
		t.Error("expected error for short blob")
	}
}

func TestRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.gpkg")

	sink, err := Create(path, dataset.CreationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	layer := dataset.Layer{
		Name:       "roads",
		SRID:       4326,
		Geographic: true,
		SpatialRef: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]]]`,
		Fields: []dataset.Field{
			{Name: "name", Type: dataset.StringType},
			{Name: "lanes", Type: dataset.IntType},
		},
	}
	if err := sink.CreateLayer(layer); err != nil {
		t.Fatal(err)
	}
	if err := sink.Begin(); err != nil {
		t.Fatal(err)
	}
	features := []*dataset.Feature{
		{Values: []interface{}{"A1", 4}, Geometry: orb.LineString{{8, 53}, {8.1, 53}}},
		{Values: []interface{}{"B2", nil}, Geometry: orb.LineString{{9, 53}, {9, 53.1}}},
	}
	for _, feature := range features {
		if err := sink.Write(feature); err != nil {
			t.Fatal(err)
		}
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

	readLayer := src.Layer()
	if !readLayer.Geographic {
		t.Error("layer should be geographic")
	}
	if readLayer.SRID != 4326 {
		t.Errorf("srid = %d", readLayer.SRID)
	}
	expectedFields := []dataset.Field{
		{Name: "name", Type: dataset.StringType},
		{Name: "lanes", Type: dataset.IntType},
	}
	if !reflect.DeepEqual(readLayer.Fields, expectedFields) {
		t.Errorf("%v != %v", readLayer.Fields, expectedFields)
	}

	first, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("missing first feature")
	}
	ls, ok := first.Geometry.(orb.LineString)
	if !ok || len(ls) != 2 {
		t.Fatalf("unexpected geometry %v", first.Geometry)
	}
	if name, isBytes := first.Values[0].([]byte); (isBytes && string(name) != "A1") || (!isBytes && first.Values[0] != "A1") {
		t.Errorf("name = %v", first.Values[0])
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
}

func TestBeginTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.gpkg")
	sink, err := Create(path, dataset.CreationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if err := sink.CreateLayer(dataset.Layer{Name: "t", SRID: 0}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Begin(); err == nil {
		t.Fatal("expected error for nested transaction")
	}
	if err := sink.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Commit(); err == nil {
		t.Fatal("expected error for commit without transaction")
	}
}
