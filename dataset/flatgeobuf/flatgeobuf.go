// Package flatgeobuf reads and writes FlatGeobuf files. Reading uses
// the spatial index of the file, unindexed files are rejected. The
// writer buffers all segments and serializes them with an index on
// Flush.
package flatgeobuf

import (
	"os"
	"path/filepath"
	"strings"

	fgb "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	fgbwriter "github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/dataset"
)

func init() {
	dataset.RegisterSource("FlatGeobuf",
		func(path string) bool {
			return dataset.HasSuffix(path, ".fgb")
		},
		Open,
	)
	dataset.RegisterSink(Create, "FlatGeobuf", "FGB")
}

type source struct {
	layer    dataset.Layer
	features []*dataset.Feature
	pos      int
}

func Open(path string) (dataset.Source, error) {
	file, err := fgb.New(path)
	if err != nil {
		return nil, err
	}
	header := file.Header()
	if header == nil {
		return nil, errors.New("missing header")
	}

	switch header.GeometryType() {
	case flattypes.GeometryTypeLineString, flattypes.GeometryTypeMultiLineString:
	default:
		return nil, errors.Errorf(
			"cannot work with geometry type %s, only linestring and multilinestring",
			flattypes.EnumNamesGeometryType[header.GeometryType()])
	}
	if header.IndexNodeSize() == 0 {
		return nil, errors.New("file has no spatial index, cannot iterate features")
	}

	var fields []dataset.Field
	var colTypes []flattypes.ColumnType
	for i := 0; i < header.ColumnsLength(); i++ {
		var col flattypes.Column
		if !header.Columns(&col, i) {
			return nil, errors.Errorf("reading column %d", i)
		}
		fields = append(fields, dataset.Field{
			Name: string(col.Name()),
			Type: fieldType(col.Type()),
		})
		colTypes = append(colTypes, col.Type())
	}

	srid := 0
	var crs flattypes.Crs
	if header.Crs(&crs) != nil {
		srid = int(crs.Code())
	}

	name := string(header.Name())
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	layer := dataset.Layer{
		Name:       name,
		SRID:       srid,
		Geographic: srid == 4326,
		Fields:     fields,
	}

	features, err := readFeatures(file, header, fields, colTypes)
	if err != nil {
		return nil, err
	}
	return &source{layer: layer, features: features}, nil
}

// readFeatures iterates all features via an index search over the
// envelope of the file.
func readFeatures(file *fgb.FlatGeoBuf, header *flattypes.Header, fields []dataset.Field, colTypes []flattypes.ColumnType) ([]*dataset.Feature, error) {
	if header.FeaturesCount() == 0 {
		return nil, nil
	}
	if header.EnvelopeLength() < 4 {
		return nil, errors.New("missing envelope, cannot iterate features")
	}
	raw, err := file.Search(header.Envelope(0), header.Envelope(1), header.Envelope(2), header.Envelope(3))
	if err != nil {
		return nil, errors.Wrap(err, "searching features")
	}

	features := make([]*dataset.Feature, 0, len(raw))
	for _, feature := range raw {
		var geomObj flattypes.Geometry
		geom := feature.Geometry(&geomObj)
		if geom == nil {
			continue
		}
		props := make([]byte, feature.PropertiesLength())
		for i := range props {
			props[i] = byte(feature.Properties(i))
		}
		features = append(features, &dataset.Feature{
			Values:   decodeValues(props, fields, colTypes),
			Geometry: geometry(geom),
		})
	}
	return features, nil
}

func fieldType(colType flattypes.ColumnType) dataset.FieldType {
	switch colType {
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte,
		flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort,
		flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt,
		flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		return dataset.IntType
	case flattypes.ColumnTypeFloat, flattypes.ColumnTypeDouble:
		return dataset.FloatType
	default:
		return dataset.StringType
	}
}

// geometry converts a FlatGeobuf geometry to orb. Multilinestrings
// carry the member boundaries in the ends vector.
func geometry(geom *flattypes.Geometry) orb.Geometry {
	points := make(orb.LineString, 0, geom.XyLength()/2)
	for i := 0; i+1 < geom.XyLength(); i += 2 {
		points = append(points, orb.Point{geom.Xy(i), geom.Xy(i + 1)})
	}
	if geom.Type() != flattypes.GeometryTypeMultiLineString || geom.EndsLength() == 0 {
		return points
	}
	mls := make(orb.MultiLineString, 0, geom.EndsLength())
	start := 0
	for i := 0; i < geom.EndsLength(); i++ {
		end := int(geom.Ends(i))
		if end > len(points) {
			end = len(points)
		}
		mls = append(mls, points[start:end])
		start = end
	}
	return mls
}

func (s *source) Layer() dataset.Layer { return s.layer }

func (s *source) Reset() error {
	s.pos = 0
	return nil
}

func (s *source) Next() (*dataset.Feature, error) {
	if s.pos >= len(s.features) {
		return nil, nil
	}
	feature := s.features[s.pos]
	s.pos++
	return feature, nil
}

func (s *source) Close() error { return nil }

type sink struct {
	path     string
	layer    dataset.Layer
	features []*dataset.Feature
}

func Create(path string, opts dataset.CreationOptions) (dataset.Sink, error) {
	return &sink{path: path}, nil
}

func (s *sink) CreateLayer(layer dataset.Layer) error {
	s.layer = layer
	return nil
}

func (s *sink) Write(feature *dataset.Feature) error {
	if _, ok := feature.Geometry.(orb.LineString); !ok {
		return errors.Errorf("flatgeobuf sink expects linestrings, got %s", feature.Geometry.GeoJSONType())
	}
	s.features = append(s.features, feature)
	return nil
}

func (s *sink) Begin() error  { return nil }
func (s *sink) Commit() error { return nil }

func (s *sink) Flush() error {
	builder := flatbuffers.NewBuilder(4096)
	header := fgbwriter.NewHeader(builder)
	header.SetGeometryType(flattypes.GeometryTypeLineString)
	header.SetName(s.layer.Name)

	colTypes := make([]flattypes.ColumnType, 0, len(s.layer.Fields))
	columns := make([]*fgbwriter.Column, 0, len(s.layer.Fields))
	for _, field := range s.layer.Fields {
		colType := columnType(field.Type)
		col := fgbwriter.NewColumn(builder)
		col.SetName(field.Name)
		col.SetTitle(field.Name)
		col.SetType(colType)
		col.SetNullable(true)
		columns = append(columns, col)
		colTypes = append(colTypes, colType)
	}
	if len(columns) > 0 {
		header.SetColumns(columns)
	}
	if s.layer.SRID > 0 {
		crs := fgbwriter.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(s.layer.SRID))
		header.SetCrs(crs)
	}

	gen := &featureGenerator{features: s.features, colTypes: colTypes}
	writer := fgbwriter.NewWriter(header, true, gen, nil)

	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	if _, err := writer.Write(file); err != nil {
		file.Close()
		return errors.Wrap(err, "writing flatgeobuf")
	}
	return file.Close()
}

func (s *sink) Close() error { return nil }

func columnType(fieldType dataset.FieldType) flattypes.ColumnType {
	switch fieldType {
	case dataset.IntType:
		return flattypes.ColumnTypeLong
	case dataset.FloatType:
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeString
	}
}

type featureGenerator struct {
	features []*dataset.Feature
	colTypes []flattypes.ColumnType
	pos      int
}

func (g *featureGenerator) Generate() *fgbwriter.Feature {
	if g.pos >= len(g.features) {
		return nil
	}
	feature := g.features[g.pos]
	g.pos++

	builder := flatbuffers.NewBuilder(1024)
	ls := feature.Geometry.(orb.LineString)
	xy := make([]float64, 0, len(ls)*2)
	for _, point := range ls {
		xy = append(xy, point[0], point[1])
	}
	geom := fgbwriter.NewGeometry(builder)
	geom.SetType(flattypes.GeometryTypeLineString)
	geom.SetXY(xy)

	out := fgbwriter.NewFeature(builder)
	out.SetGeometry(geom)
	if props := encodeValues(feature.Values, g.colTypes); len(props) > 0 {
		out.SetProperties(props)
	}
	return out
}
