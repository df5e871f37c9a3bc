// Package shp reads and writes ESRI Shapefiles (the default output
// format). The coordinate system is taken from the .prj sidecar file,
// a GEOGCS definition selects geographic distance mode.
package shp

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shapefile "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/dataset"
)

func init() {
	dataset.RegisterSource("ESRI Shapefile",
		func(path string) bool {
			return dataset.HasSuffix(path, ".shp")
		},
		Open,
	)
	dataset.RegisterSink(Create, "ESRI Shapefile", "Shapefile")
}

const wgs84Wkt = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`

type source struct {
	path   string
	reader *shapefile.Reader
	layer  dataset.Layer
}

func Open(path string) (dataset.Source, error) {
	reader, err := shapefile.Open(path)
	if err != nil {
		return nil, err
	}
	if reader.GeometryType != shapefile.POLYLINE {
		reader.Close()
		return nil, errors.Errorf(
			"cannot work with shape type %d, only polyline shapefiles", reader.GeometryType)
	}

	var fields []dataset.Field
	for _, field := range reader.Fields() {
		fields = append(fields, dataset.Field{
			Name:      field.String(),
			Type:      fieldType(field),
			Width:     int(field.Size),
			Precision: int(field.Precision),
		})
	}

	spatialRef, geographic := readPrj(path)
	srid := 0
	if geographic {
		srid = 4326
	}
	return &source{
		path:   path,
		reader: reader,
		layer: dataset.Layer{
			Name:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			SRID:       srid,
			Geographic: geographic,
			SpatialRef: spatialRef,
			Fields:     fields,
		},
	}, nil
}

func fieldType(field shapefile.Field) dataset.FieldType {
	switch field.Fieldtype {
	case 'N':
		if field.Precision == 0 {
			return dataset.IntType
		}
		return dataset.FloatType
	case 'F':
		return dataset.FloatType
	default:
		return dataset.StringType
	}
}

// readPrj reads the .prj sidecar of a shapefile. Reports geographic
// for GEOGCS definitions, missing or unreadable .prj files select
// planar mode.
func readPrj(path string) (wkt string, geographic bool) {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	buf, err := os.ReadFile(prj)
	if err != nil {
		return "", false
	}
	wkt = strings.TrimSpace(string(buf))
	return wkt, strings.HasPrefix(strings.ToUpper(wkt), "GEOGCS")
}

func (s *source) Layer() dataset.Layer { return s.layer }

// Reset reopens the shapefile, the reader has no rewind.
func (s *source) Reset() error {
	if err := s.reader.Close(); err != nil {
		return err
	}
	reader, err := shapefile.Open(s.path)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

func (s *source) Next() (*dataset.Feature, error) {
	if !s.reader.Next() {
		if err := s.reader.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	row, shape := s.reader.Shape()
	polyline, ok := shape.(*shapefile.PolyLine)
	if !ok {
		return nil, errors.Errorf("unexpected shape type %T in row %d", shape, row)
	}

	values := make([]interface{}, len(s.layer.Fields))
	for i, field := range s.layer.Fields {
		values[i] = attributeValue(s.reader.ReadAttribute(row, i), field.Type)
	}
	return &dataset.Feature{Values: values, Geometry: geometry(polyline)}, nil
}

func attributeValue(raw string, fieldType dataset.FieldType) interface{} {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch fieldType {
	case dataset.IntType:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	case dataset.FloatType:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

// geometry converts a shapefile polyline to an orb geometry, multiple
// parts become a multilinestring.
func geometry(polyline *shapefile.PolyLine) orb.Geometry {
	parts := make([]orb.LineString, 0, len(polyline.Parts))
	for i, start := range polyline.Parts {
		end := int32(len(polyline.Points))
		if i+1 < len(polyline.Parts) {
			end = polyline.Parts[i+1]
		}
		ls := make(orb.LineString, 0, end-start)
		for _, point := range polyline.Points[start:end] {
			ls = append(ls, orb.Point{point.X, point.Y})
		}
		parts = append(parts, ls)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return orb.MultiLineString(parts)
}

func (s *source) Close() error {
	return s.reader.Close()
}

type sink struct {
	path   string
	writer *shapefile.Writer
	layer  dataset.Layer
	closed bool
}

func Create(path string, opts dataset.CreationOptions) (dataset.Sink, error) {
	writer, err := shapefile.Create(path, shapefile.POLYLINE)
	if err != nil {
		return nil, err
	}
	return &sink{path: path, writer: writer}, nil
}

func (s *sink) CreateLayer(layer dataset.Layer) error {
	s.layer = layer
	fields := make([]shapefile.Field, 0, len(layer.Fields))
	for _, field := range layer.Fields {
		fields = append(fields, shpField(field))
	}
	s.writer.SetFields(fields)
	return s.writePrj()
}

func shpField(field dataset.Field) shapefile.Field {
	width := field.Width
	switch field.Type {
	case dataset.IntType:
		if width == 0 {
			width = 11
		}
		return shapefile.NumberField(field.Name, uint8(width))
	case dataset.FloatType:
		if width == 0 {
			width = 24
		}
		precision := field.Precision
		if precision == 0 {
			precision = 15
		}
		return shapefile.FloatField(field.Name, uint8(width), uint8(precision))
	default:
		if width == 0 {
			width = 80
		}
		return shapefile.StringField(field.Name, uint8(width))
	}
}

// writePrj stores the coordinate system of the input next to the
// output, like the rest of the schema it is copied verbatim.
func (s *sink) writePrj() error {
	wkt := s.layer.SpatialRef
	if wkt == "" && s.layer.Geographic {
		wkt = wgs84Wkt
	}
	if wkt == "" {
		return nil
	}
	prj := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".prj"
	return os.WriteFile(prj, []byte(wkt), 0644)
}

func (s *sink) Write(feature *dataset.Feature) error {
	ls, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return errors.Errorf("shapefile sink expects linestrings, got %s", feature.Geometry.GeoJSONType())
	}
	points := make([]shapefile.Point, 0, len(ls))
	for _, point := range ls {
		points = append(points, shapefile.Point{X: point[0], Y: point[1]})
	}
	row := s.writer.Write(shapefile.NewPolyLine([][]shapefile.Point{points}))
	for i, value := range feature.Values {
		if value == nil {
			continue
		}
		if err := s.writer.WriteAttribute(int(row), i, attribute(value)); err != nil {
			return errors.Wrapf(err, "writing attribute %d of row %d", i, row)
		}
	}
	return nil
}

// attribute narrows value to the types the DBF writer accepts.
func attribute(value interface{}) interface{} {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float32:
		return float64(v)
	case bool:
		if v {
			return "T"
		}
		return "F"
	default:
		return value
	}
}

func (s *sink) Begin() error  { return nil }
func (s *sink) Commit() error { return nil }

// Flush finalizes headers and the DBF, the writer cannot append
// afterwards.
func (s *sink) Flush() error {
	return s.Close()
}

func (s *sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Close()
	return nil
}
