// Package datatype holds the SQL type system of the engine: CAST type names,
// implicit coercion between Arrow types, and conversion and comparison of
// scalar values.
//
// Scalar values are plain Go values. Every Arrow type maps to exactly one
// Go representation:
//   - bool: bool
//   - int8, int16, int32, int64: int64
//   - float32, float64: float64
//   - utf8: string
//   - binary, fixed_size_binary: []byte
//   - date32, timestamp: time.Time (UTC)
//   - NULL: nil
package datatype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	// ErrUnknownType is returned for CAST targets that name no supported type.
	ErrUnknownType = errors.New("unknown type")

	// ErrIncompatible is returned when two types have no common type.
	ErrIncompatible = errors.New("incompatible types")
)

// Null is the type of the NULL literal.
var Null arrow.DataType = arrow.Null

// typeNames maps SQL type names (upper case) to Arrow types.
var typeNames = map[string]arrow.DataType{
	"BOOLEAN":   arrow.FixedWidthTypes.Boolean,
	"BOOL":      arrow.FixedWidthTypes.Boolean,
	"TINYINT":   arrow.PrimitiveTypes.Int8,
	"SMALLINT":  arrow.PrimitiveTypes.Int16,
	"INT":       arrow.PrimitiveTypes.Int32,
	"INTEGER":   arrow.PrimitiveTypes.Int32,
	"BIGINT":    arrow.PrimitiveTypes.Int64,
	"REAL":      arrow.PrimitiveTypes.Float32,
	"FLOAT":     arrow.PrimitiveTypes.Float32,
	"DOUBLE":    arrow.PrimitiveTypes.Float64,
	"VARCHAR":   arrow.BinaryTypes.String,
	"CHAR":      arrow.BinaryTypes.String,
	"TEXT":      arrow.BinaryTypes.String,
	"STRING":    arrow.BinaryTypes.String,
	"BINARY":    arrow.BinaryTypes.Binary,
	"VARBINARY": arrow.BinaryTypes.Binary,
	"BYTEA":     arrow.BinaryTypes.Binary,
	"DATE":      arrow.FixedWidthTypes.Date32,
	"TIMESTAMP": arrow.FixedWidthTypes.Timestamp_ns,
}

// Parse resolves a SQL type name such as VARCHAR or BIGINT.
func Parse(name string) (arrow.DataType, error) {
	dt, ok := typeNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return dt, nil
}

// IsNull reports whether dt is the NULL type.
func IsNull(dt arrow.DataType) bool {
	return dt.ID() == arrow.NULL
}

// IsInteger reports whether dt is a signed integer type.
func IsInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

// IsFloat reports whether dt is a floating point type.
func IsFloat(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

// IsNumeric reports whether dt is an integer or floating point type.
func IsNumeric(dt arrow.DataType) bool {
	return IsInteger(dt) || IsFloat(dt)
}

// IsString reports whether dt is utf8 or binary.
func IsString(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING, arrow.BINARY, arrow.FIXED_SIZE_BINARY:
		return true
	}
	return false
}

// IsTemporal reports whether dt is a date or timestamp type.
func IsTemporal(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.DATE32, arrow.TIMESTAMP:
		return true
	}
	return false
}

func integerRank(dt arrow.DataType) int {
	switch dt.ID() {
	case arrow.INT8:
		return 1
	case arrow.INT16:
		return 2
	case arrow.INT32:
		return 3
	case arrow.INT64:
		return 4
	}
	return 0
}

// Common returns the type two operands are coerced to before they are
// compared or combined.
//
// Identical types are kept. Among numeric types float64 wins over everything,
// otherwise the wider integer is used. utf8 and binary meet at utf8, dates
// and timestamps at timestamp. NULL takes the type of the other operand.
func Common(a, b arrow.DataType) (arrow.DataType, error) {
	switch {
	case arrow.TypeEqual(a, b):
		return a, nil
	case IsNull(a):
		return b, nil
	case IsNull(b):
		return a, nil
	case IsNumeric(a) && IsNumeric(b):
		if IsFloat(a) || IsFloat(b) {
			return arrow.PrimitiveTypes.Float64, nil
		}
		if integerRank(a) >= integerRank(b) {
			return a, nil
		}
		return b, nil
	case IsString(a) && IsString(b):
		return arrow.BinaryTypes.String, nil
	case IsTemporal(a) && IsTemporal(b):
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	}
	return nil, fmt.Errorf("%w: %s and %s", ErrIncompatible, a, b)
}

// CanCast reports whether values of type from can be cast to type to.
// Casts whose success depends on the value (utf8 to int) are allowed and
// fail at execution time.
func CanCast(from, to arrow.DataType) bool {
	if IsNull(from) || arrow.TypeEqual(from, to) {
		return true
	}
	switch {
	case to.ID() == arrow.STRING:
		return true
	case to.ID() == arrow.BINARY:
		return IsString(from)
	case IsNumeric(to), to.ID() == arrow.BOOL:
		return IsNumeric(from) || from.ID() == arrow.BOOL || IsString(from)
	case IsTemporal(to):
		return IsTemporal(from) || IsString(from) || IsInteger(from)
	}
	return false
}
