// Package postgis writes segments to a PostGIS table. Output only:
// inputs are file datasets. The connection is given as OUTFILE, either
// a PG: prefixed libpq string or a postgres:// URL.
package postgis

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/dataset"
)

func init() {
	dataset.RegisterSink(Create, "PostgreSQL", "PostGIS")
}

type sink struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	schema    string
	table     string
	srid      int
	insertSQL string
}

func Create(path string, opts dataset.CreationOptions) (dataset.Sink, error) {
	dsn := strings.TrimPrefix(path, "PG:")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to database")
	}

	schema, ok := opts.DatasetOption("SCHEMA")
	if !ok {
		schema = "public"
	}
	table, _ := opts.LayerOption("LAYER_NAME")
	return &sink{db: db, schema: schema, table: table}, nil
}

func (s *sink) CreateLayer(layer dataset.Layer) error {
	if s.table == "" {
		s.table = layer.Name
	}
	s.srid = layer.SRID

	if _, err := s.db.Exec(dropTableSQL(s.schema, s.table)); err != nil {
		return errors.Wrap(err, "dropping existing table")
	}
	if _, err := s.db.Exec(createTableSQL(s.schema, s.table, s.srid, layer.Fields)); err != nil {
		return errors.Wrap(err, "creating table")
	}
	s.insertSQL = insertSQL(s.schema, s.table, s.srid, layer.Fields)
	return nil
}

func dropTableSQL(schema, table string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS "%s"."%s"`, schema, table)
}

func createTableSQL(schema, table string, srid int, fields []dataset.Field) string {
	cols := []string{
		"id SERIAL PRIMARY KEY",
		fmt.Sprintf("geom geometry(LINESTRING, %d)", srid),
	}
	for _, field := range fields {
		cols = append(cols, fmt.Sprintf(`"%s" %s`, field.Name, columnType(field.Type)))
	}
	return fmt.Sprintf(`CREATE TABLE "%s"."%s" (%s)`,
		schema, table, strings.Join(cols, ", "))
}

func insertSQL(schema, table string, srid int, fields []dataset.Field) string {
	cols := []string{"geom"}
	vars := []string{fmt.Sprintf("ST_GeomFromWKB($1, %d)", srid)}
	for i, field := range fields {
		cols = append(cols, fmt.Sprintf(`"%s"`, field.Name))
		vars = append(vars, fmt.Sprintf("$%d", i+2))
	}
	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES (%s)`,
		schema, table, strings.Join(cols, ", "), strings.Join(vars, ", "))
}

func columnType(fieldType dataset.FieldType) string {
	switch fieldType {
	case dataset.IntType:
		return "BIGINT"
	case dataset.FloatType:
		return "DOUBLE PRECISION"
	default:
		return "VARCHAR"
	}
}

func (s *sink) Write(feature *dataset.Feature) error {
	ls, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return errors.Errorf("postgis sink expects linestrings, got %s", feature.Geometry.GeoJSONType())
	}
	blob, err := wkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		return errors.Wrap(err, "encoding WKB")
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
	// commits are durable, nothing to sync
	return nil
}

func (s *sink) Close() error {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}
