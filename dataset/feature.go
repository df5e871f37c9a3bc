package dataset

import "github.com/paulmach/orb"

type FieldType string

const (
	StringType FieldType = "string"
	IntType    FieldType = "int"
	FloatType  FieldType = "float"
)

// Field describes a single attribute column. Width and Precision are
// hints for fixed width formats (DBF), other drivers may ignore them.
type Field struct {
	Name      string
	Type      FieldType
	Width     int
	Precision int
}

// Layer describes a feature layer: its name, spatial reference and
// attribute schema. Sinks create their output layer from the Layer of
// the source, only the geometry type is fixed to linestring.
type Layer struct {
	Name       string
	SRID       int
	Geographic bool
	// SpatialRef is the raw coordinate system definition of the
	// source (WKT for shapefiles), passed through verbatim to
	// drivers that can store it. May be empty.
	SpatialRef string
	Fields     []Field
}

// Feature combines one geometry with its attribute values. Values are
// ordered like the Fields of the layer schema, missing attributes are
// nil.
type Feature struct {
	Values   []interface{}
	Geometry orb.Geometry
}
