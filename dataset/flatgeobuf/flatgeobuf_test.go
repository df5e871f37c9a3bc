package flatgeobuf

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"

	"github.com/omniscale/linesplit/dataset"
)

func TestValuesRoundtrip(t *testing.T) {
	fields := []dataset.Field{
		{Name: "name", Type: dataset.StringType},
		{Name: "lanes", Type: dataset.IntType},
		{Name: "width", Type: dataset.FloatType},
	}
	colTypes := []flattypes.ColumnType{
		flattypes.ColumnTypeString,
		flattypes.ColumnTypeLong,
		flattypes.ColumnTypeDouble,
	}
	values := []interface{}{"A1", int64(4), 7.5}

	decoded := decodeValues(encodeValues(values, colTypes), fields, colTypes)
	if !reflect.DeepEqual(decoded, values) {
		t.Fatalf("%v != %v", decoded, values)
	}

	// nil values are omitted and stay nil
	values = []interface{}{nil, int64(2), nil}
	decoded = decodeValues(encodeValues(values, colTypes), fields, colTypes)
	if !reflect.DeepEqual(decoded, values) {
		t.Fatalf("%v != %v", decoded, values)
	}
}

func TestRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.fgb")

	sink, err := Create(path, dataset.CreationOptions{})
	if err != nil {
		t.Fatal(err)
	}
	layer := dataset.Layer{
		Name:       "roads",
		SRID:       4326,
		Geographic: true,
		Fields: []dataset.Field{
			{Name: "name", Type: dataset.StringType},
			{Name: "lanes", Type: dataset.IntType},
		},
	}
	if err := sink.CreateLayer(layer); err != nil {
		t.Fatal(err)
	}
	features := []*dataset.Feature{
		{Values: []interface{}{"A1", int64(4)}, Geometry: orb.LineString{{8, 53}, {8.1, 53}}},
		{Values: []interface{}{"B2", nil}, Geometry: orb.LineString{{9, 53}, {9, 53.1}}},
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

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	readLayer := src.Layer()
	if !readLayer.Geographic || readLayer.SRID != 4326 {
		t.Errorf("unexpected layer: %+v", readLayer)
	}
	if len(readLayer.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", readLayer.Fields)
	}

	read := 0
	for {
		feature, err := src.Next()
		if err != nil {
			t.Fatal(err)
		}
		if feature == nil {
			break
		}
		if _, ok := feature.Geometry.(orb.LineString); !ok {
			t.Fatalf("expected linestring, got %T", feature.Geometry)
		}
		read++
	}
	if read != 2 {
		t.Fatalf("expected 2 features, got %d", read)
	}
}
