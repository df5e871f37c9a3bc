// Package gpkg reads and writes GeoPackage files with the pure Go
// SQLite driver. Geometries are stored as GeoPackage binary: a small
// header followed by WKB.
package gpkg

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/omniscale/linesplit/dataset"
)

func init() {
	dataset.RegisterSource("GPKG",
		func(path string) bool {
			return dataset.HasSuffix(path, ".gpkg")
		},
		Open,
	)
	dataset.RegisterSink(Create, "GPKG", "GeoPackage", "SQLite")
}

const geometryColumn = "geom"

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type source struct {
	db    *sql.DB
	rows  *sql.Rows
	layer dataset.Layer
	query string
}

func Open(path string) (dataset.Source, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	var table, column, geomType string
	var srid int
	row := db.QueryRow(`
		SELECT g.table_name, g.column_name, g.geometry_type_name, g.srs_id
		FROM gpkg_geometry_columns g
		JOIN gpkg_contents c ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name LIMIT 1`)
	if err := row.Scan(&table, &column, &geomType, &srid); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "no feature layer found")
	}
	switch strings.ToUpper(geomType) {
	case "LINESTRING", "MULTILINESTRING":
	default:
		db.Close()
		return nil, errors.Errorf(
			"cannot work with geometry type %s, only linestring and multilinestring", geomType)
	}

	var definition string
	geographic := srid == 4326
	err = db.QueryRow(`SELECT definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srid).
		Scan(&definition)
	if err == nil && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(definition)), "GEOGCS") {
		geographic = true
	}

	fields, err := tableFields(db, table, column)
	if err != nil {
		db.Close()
		return nil, err
	}

	names := make([]string, 0, len(fields)+1)
	names = append(names, quoteIdent(column))
	for _, field := range fields {
		names = append(names, quoteIdent(field.Name))
	}
	query := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(names, ", "), quoteIdent(table))

	return &source{
		db:    db,
		query: query,
		layer: dataset.Layer{
			Name:       table,
			SRID:       srid,
			Geographic: geographic,
			SpatialRef: definition,
			Fields:     fields,
		},
	}, nil
}

func tableFields(db *sql.DB, table, geomColumn string) ([]dataset.Field, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, errors.Wrap(err, "reading table schema")
	}
	defer rows.Close()

	var fields []dataset.Field
	for rows.Next() {
		var cid, notnull, pk int
		var name, sqlType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &sqlType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk != 0 || name == geomColumn {
			continue
		}
		fields = append(fields, dataset.Field{Name: name, Type: fieldType(sqlType)})
	}
	return fields, rows.Err()
}

func fieldType(sqlType string) dataset.FieldType {
	switch {
	case strings.Contains(strings.ToUpper(sqlType), "INT"):
		return dataset.IntType
	case strings.Contains(strings.ToUpper(sqlType), "REAL"),
		strings.Contains(strings.ToUpper(sqlType), "DOUBLE"),
		strings.Contains(strings.ToUpper(sqlType), "FLOAT"):
		return dataset.FloatType
	default:
		return dataset.StringType
	}
}

func (s *source) Layer() dataset.Layer { return s.layer }

func (s *source) Reset() error {
	if s.rows != nil {
		if err := s.rows.Close(); err != nil {
			return err
		}
	}
	rows, err := s.db.Query(s.query)
	if err != nil {
		return err
	}
	s.rows = rows
	return nil
}

func (s *source) Next() (*dataset.Feature, error) {
	if s.rows == nil {
		if err := s.Reset(); err != nil {
			return nil, err
		}
	}
	if !s.rows.Next() {
		return nil, s.rows.Err()
	}

	dest := make([]interface{}, len(s.layer.Fields)+1)
	var blob []byte
	dest[0] = &blob
	values := make([]interface{}, len(s.layer.Fields))
	for i := range values {
		dest[i+1] = &values[i]
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, err
	}

	geom, err := decodeGeometry(blob)
	if err != nil {
		return nil, err
	}
	return &dataset.Feature{Values: values, Geometry: geom}, nil
}

func (s *source) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	return s.db.Close()
}

type sink struct {
	db              *sql.DB
	tx              *sql.Tx
	stmt            *sql.Stmt
	table           string
	tableFromOption bool
	srid            int
	insertSQL       string
	fields          []dataset.Field
}

func Create(path string, opts dataset.CreationOptions) (dataset.Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	table, fromOption := opts.LayerOption("LAYER_NAME")
	if !fromOption {
		table = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &sink{db: db, table: table, tableFromOption: fromOption}, nil
}

func (s *sink) CreateLayer(layer dataset.Layer) error {
	// keep the layer name of the input unless LAYER_NAME is given
	if !s.tableFromOption && layer.Name != "" {
		s.table = layer.Name
	}
	s.fields = layer.Fields
	s.srid = layer.SRID
	if err := s.createMetaTables(layer); err != nil {
		return err
	}

	cols := []string{`fid INTEGER PRIMARY KEY AUTOINCREMENT`, quoteIdent(geometryColumn) + ` BLOB`}
	names := []string{quoteIdent(geometryColumn)}
	params := []string{"?"}
	for _, field := range layer.Fields {
		cols = append(cols, quoteIdent(field.Name)+" "+sqlType(field.Type))
		names = append(names, quoteIdent(field.Name))
		params = append(params, "?")
	}
	_, err := s.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdent(s.table), strings.Join(cols, ", ")))
	if err != nil {
		return errors.Wrap(err, "creating feature table")
	}
	s.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table), strings.Join(names, ", "), strings.Join(params, ", "))
	return nil
}

func sqlType(fieldType dataset.FieldType) string {
	switch fieldType {
	case dataset.IntType:
		return "INTEGER"
	case dataset.FloatType:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

func (s *sink) createMetaTables(layer dataset.Layer) error {
	stmts := []string{
		`PRAGMA application_id = 0x47504B47`,
		`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT)`,
		`CREATE TABLE IF NOT EXISTS gpkg_contents (
			table_name TEXT PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER)`,
		`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
			table_name TEXT PRIMARY KEY,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL)`,
		`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
			(srs_name, srs_id, organization, organization_coordsys_id, definition)
			VALUES ('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined')`,
		`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
			(srs_name, srs_id, organization, organization_coordsys_id, definition)
			VALUES ('Undefined geographic SRS', 0, 'NONE', 0, 'undefined')`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "creating geopackage tables")
		}
	}

	definition := layer.SpatialRef
	if definition == "" {
		definition = "undefined"
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition)
		VALUES (?, ?, 'EPSG', ?, ?)`,
		fmt.Sprintf("EPSG:%d", layer.SRID), layer.SRID, layer.SRID, definition)
	if err != nil {
		return errors.Wrap(err, "inserting spatial reference")
	}
	_, err = s.db.Exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id)
		VALUES (?, 'features', ?, ?)`, s.table, s.table, layer.SRID)
	if err != nil {
		return errors.Wrap(err, "registering layer")
	}
	_, err = s.db.Exec(`INSERT INTO gpkg_geometry_columns
		(table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, ?, 'LINESTRING', ?, 0, 0)`, s.table, geometryColumn, layer.SRID)
	if err != nil {
		return errors.Wrap(err, "registering geometry column")
	}
	return nil
}

func (s *sink) Write(feature *dataset.Feature) error {
	ls, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return errors.Errorf("geopackage sink expects linestrings, got %s", feature.Geometry.GeoJSONType())
	}
	blob, err := encodeGeometry(ls, s.srid)
	if err != nil {
		return err
	}
	args := make([]interface{}, 0, len(feature.Values)+1)
	args = append(args, blob)
	args = append(args, feature.Values...)

	if s.stmt != nil {
		_, err = s.stmt.Exec(args...)
	} else {
		_, err = s.db.Exec(s.insertSQL, args...)
	}
	return errors.Wrap(err, "inserting feature")
}

func (s *sink) Begin() error {
	if s.tx != nil {
		return errors.New("transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(s.insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	s.tx = tx
	s.stmt = stmt
	return nil
}

func (s *sink) Commit() error {
	if s.tx == nil {
		return errors.New("no open transaction")
	}
	s.stmt.Close()
	s.stmt = nil
	err := s.tx.Commit()
	s.tx = nil
	return err
}

func (s *sink) Flush() error {
	// sqlite commits to disk, nothing buffered outside transactions
	return nil
}

func (s *sink) Close() error {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}
