// Package geojson reads and writes GeoJSON FeatureCollections.
// GeoJSON coordinates are always geographic (WGS84). The attribute
// schema of an input is derived from the feature properties in
// first-seen order.
package geojson

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	orbgeojson "github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/dataset"
)

func init() {
	dataset.RegisterSource("GeoJSON",
		func(path string) bool {
			return dataset.HasSuffix(path, ".geojson", ".json")
		},
		Open,
	)
	dataset.RegisterSink(Create, "GeoJSON")
}

type source struct {
	layer    dataset.Layer
	features []*orbgeojson.Feature
	pos      int
}

func Open(path string) (dataset.Source, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := orbgeojson.UnmarshalFeatureCollection(buf)
	if err != nil {
		return nil, errors.Wrap(err, "parsing feature collection")
	}

	var fields []dataset.Field
	seen := map[string]bool{}
	for _, feature := range fc.Features {
		switch feature.Geometry.(type) {
		case nil:
		case orb.LineString, orb.MultiLineString:
		default:
			return nil, errors.Errorf(
				"cannot work with geometry type %s, only linestring and multilinestring",
				feature.Geometry.GeoJSONType())
		}
		for key, value := range feature.Properties {
			if seen[key] {
				continue
			}
			seen[key] = true
			fields = append(fields, dataset.Field{Name: key, Type: fieldType(value)})
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &source{
		layer: dataset.Layer{
			Name:       name,
			SRID:       4326,
			Geographic: true,
			Fields:     fields,
		},
		features: fc.Features,
	}, nil
}

func fieldType(value interface{}) dataset.FieldType {
	switch value.(type) {
	case float64, float32:
		return dataset.FloatType
	case int, int64:
		return dataset.IntType
	default:
		return dataset.StringType
	}
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

	values := make([]interface{}, len(s.layer.Fields))
	for i, field := range s.layer.Fields {
		if value, ok := feature.Properties[field.Name]; ok {
			values[i] = value
		}
	}
	return &dataset.Feature{Values: values, Geometry: feature.Geometry}, nil
}

func (s *source) Close() error { return nil }

// sink buffers all features and writes a single FeatureCollection
// document on Flush.
type sink struct {
	path   string
	pretty bool
	fields []dataset.Field
	fc     *orbgeojson.FeatureCollection
}

func Create(path string, opts dataset.CreationOptions) (dataset.Sink, error) {
	pretty := false
	if value, ok := opts.DatasetOption("PRETTY"); ok {
		pretty = strings.EqualFold(value, "YES") || strings.EqualFold(value, "TRUE")
	}
	return &sink{
		path:   path,
		pretty: pretty,
		fc:     orbgeojson.NewFeatureCollection(),
	}, nil
}

func (s *sink) CreateLayer(layer dataset.Layer) error {
	s.fields = layer.Fields
	return nil
}

func (s *sink) Write(feature *dataset.Feature) error {
	out := orbgeojson.NewFeature(feature.Geometry)
	for i, field := range s.fields {
		if i < len(feature.Values) && feature.Values[i] != nil {
			out.Properties[field.Name] = feature.Values[i]
		}
	}
	s.fc.Append(out)
	return nil
}

func (s *sink) Begin() error  { return nil }
func (s *sink) Commit() error { return nil }

func (s *sink) Flush() error {
	var buf []byte
	var err error
	if s.pretty {
		buf, err = json.MarshalIndent(s.fc, "", "  ")
	} else {
		buf, err = json.Marshal(s.fc)
	}
	if err != nil {
		return errors.Wrap(err, "encoding feature collection")
	}
	return os.WriteFile(s.path, buf, 0644)
}

func (s *sink) Close() error { return nil }
