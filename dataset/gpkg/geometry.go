package gpkg

import (
	"encoding/binary"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
)

// GeoPackage binary: magic "GP", version, flags, srs_id, optional
// envelope, then standard WKB.

const (
	flagLittleEndian  = 0x01
	flagEmptyGeometry = 0x10
)

var envelopeSize = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

func encodeGeometry(geom orb.Geometry, srid int) ([]byte, error) {
	body, err := wkb.Marshal(geom, binary.LittleEndian)
	if err != nil {
		return nil, errors.Wrap(err, "encoding WKB")
	}
	header := make([]byte, 8)
	header[0] = 'G'
	header[1] = 'P'
	header[2] = 0 // version 1
	header[3] = flagLittleEndian
	binary.LittleEndian.PutUint32(header[4:], uint32(int32(srid)))
	return append(header, body...), nil
}

func decodeGeometry(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errors.New("not a geopackage geometry blob")
	}
	flags := blob[3]
	if flags&flagEmptyGeometry != 0 {
		return nil, nil
	}
	size, ok := envelopeSize[(flags>>1)&0x07]
	if !ok {
		return nil, errors.Errorf("invalid envelope indicator in flags %#x", flags)
	}
	offset := 8 + size
	if len(blob) < offset {
		return nil, errors.New("geometry blob shorter than envelope")
	}
	geom, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, errors.Wrap(err, "decoding WKB")
	}
	return geom, nil
}
