package datatype

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const secondsPerDay = 24 * 60 * 60

// ValueAt returns row i of arr as a scalar, or nil when the slot is null.
func ValueAt(arr arrow.Array, i int) (interface{}, error) {
	if arr.IsNull(i) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Null:
		return nil, nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Binary:
		return a.Value(i), nil
	case *array.FixedSizeBinary:
		return a.Value(i), nil
	case *array.Date32:
		return time.Unix(int64(a.Value(i))*secondsPerDay, 0).UTC(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC(), nil
	}
	return nil, fmt.Errorf("%w: unsupported array type %s", ErrIncompatible, arr.DataType())
}

// Append appends scalar v to b. v must already have the representation of
// the builder's type; nil appends a null.
func Append(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	ok := true
	switch b := b.(type) {
	case *array.BooleanBuilder:
		var val bool
		if val, ok = v.(bool); ok {
			b.Append(val)
		}
	case *array.Int8Builder:
		var val int64
		if val, ok = v.(int64); ok {
			b.Append(int8(val))
		}
	case *array.Int16Builder:
		var val int64
		if val, ok = v.(int64); ok {
			b.Append(int16(val))
		}
	case *array.Int32Builder:
		var val int64
		if val, ok = v.(int64); ok {
			b.Append(int32(val))
		}
	case *array.Int64Builder:
		var val int64
		if val, ok = v.(int64); ok {
			b.Append(val)
		}
	case *array.Float32Builder:
		var val float64
		if val, ok = v.(float64); ok {
			b.Append(float32(val))
		}
	case *array.Float64Builder:
		var val float64
		if val, ok = v.(float64); ok {
			b.Append(val)
		}
	case *array.StringBuilder:
		switch val := v.(type) {
		case string:
			b.Append(val)
		case []byte:
			b.Append(string(val))
		default:
			ok = false
		}
	case *array.BinaryBuilder:
		switch val := v.(type) {
		case []byte:
			b.Append(val)
		case string:
			b.AppendString(val)
		default:
			ok = false
		}
	case *array.FixedSizeBinaryBuilder:
		var val []byte
		if val, ok = v.([]byte); ok {
			b.Append(val)
		}
	case *array.Date32Builder:
		var val time.Time
		if val, ok = v.(time.Time); ok {
			days := val.Unix() / secondsPerDay
			if val.Unix() < 0 && val.Unix()%secondsPerDay != 0 {
				days--
			}
			b.Append(arrow.Date32(days))
		}
	case *array.TimestampBuilder:
		var val time.Time
		if val, ok = v.(time.Time); ok {
			b.Append(timestampIn(val, b.Type().(*arrow.TimestampType).Unit))
		}
	case *array.NullBuilder:
		b.AppendNull()
	default:
		return fmt.Errorf("%w: unsupported builder %T", ErrIncompatible, b)
	}

	if !ok {
		return fmt.Errorf("%w: cannot append %T to %T", ErrIncompatible, v, b)
	}
	return nil
}

func timestampIn(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	}
	return arrow.Timestamp(t.UnixNano())
}
