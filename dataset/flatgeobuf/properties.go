package flatgeobuf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"

	"github.com/omniscale/linesplit/dataset"
)

// Property rows are encoded as a sequence of (uint16 column index,
// value) pairs, nil values are omitted. Strings are null terminated.

func encodeValues(values []interface{}, colTypes []flattypes.ColumnType) []byte {
	buf := &bytes.Buffer{}
	for i, value := range values {
		if value == nil || i >= len(colTypes) {
			continue
		}
		idx := make([]byte, 2)
		binary.LittleEndian.PutUint16(idx, uint16(i))
		buf.Write(idx)

		switch colTypes[i] {
		case flattypes.ColumnTypeLong:
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, uint64(toInt64(value)))
			buf.Write(b)
		case flattypes.ColumnTypeDouble:
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, math.Float64bits(toFloat64(value)))
			buf.Write(b)
		default:
			buf.WriteString(toString(value))
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

func decodeValues(data []byte, fields []dataset.Field, colTypes []flattypes.ColumnType) []interface{} {
	values := make([]interface{}, len(fields))
	offset := 0
	for offset+2 <= len(data) {
		idx := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if idx >= len(colTypes) {
			break
		}
		value, read := readValue(data[offset:], colTypes[idx])
		if read == 0 {
			break
		}
		offset += read
		values[idx] = value
	}
	return values
}

func readValue(data []byte, colType flattypes.ColumnType) (interface{}, int) {
	switch colType {
	case flattypes.ColumnTypeBool:
		if len(data) < 1 {
			return nil, 0
		}
		return data[0] != 0, 1
	case flattypes.ColumnTypeByte:
		if len(data) < 1 {
			return nil, 0
		}
		return int64(int8(data[0])), 1
	case flattypes.ColumnTypeUByte:
		if len(data) < 1 {
			return nil, 0
		}
		return int64(data[0]), 1
	case flattypes.ColumnTypeShort:
		if len(data) < 2 {
			return nil, 0
		}
		return int64(int16(binary.LittleEndian.Uint16(data[:2]))), 2
	case flattypes.ColumnTypeUShort:
		if len(data) < 2 {
			return nil, 0
		}
		return int64(binary.LittleEndian.Uint16(data[:2])), 2
	case flattypes.ColumnTypeInt:
		if len(data) < 4 {
			return nil, 0
		}
		return int64(int32(binary.LittleEndian.Uint32(data[:4]))), 4
	case flattypes.ColumnTypeUInt:
		if len(data) < 4 {
			return nil, 0
		}
		return int64(binary.LittleEndian.Uint32(data[:4])), 4
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		if len(data) < 8 {
			return nil, 0
		}
		return int64(binary.LittleEndian.Uint64(data[:8])), 8
	case flattypes.ColumnTypeFloat:
		if len(data) < 4 {
			return nil, 0
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[:4]))), 4
	case flattypes.ColumnTypeDouble:
		if len(data) < 8 {
			return nil, 0
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), 8
	default:
		end := bytes.IndexByte(data, 0)
		if end == -1 {
			return string(data), len(data)
		}
		return string(data[:end]), end + 1
	}
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	default:
		return 0
	}
}

func toFloat64(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
