package reader

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"
	"github.com/parquet-go/parquet-go/format"
)

// ErrUnsupportedColumn is returned for columns that have no flat Arrow
// representation (groups, repeated fields).
var ErrUnsupportedColumn = errors.New("unsupported column")

// julianUnixEpoch is the Julian day number of 1970-01-01, used to decode INT96 timestamps.
const julianUnixEpoch = 2440588

// SchemaInfo represents metadata about a single column in a Parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	ArrowType    string `json:"arrow_type"`
	Required     bool   `json:"required"`
	Optional     bool   `json:"optional"`
	Repeated     bool   `json:"repeated"`
}

// ExtractSchemaInfo extracts schema information from a Parquet file.
//
// Returns a slice of SchemaInfo containing metadata about each column including
// name, type information, and whether the field is required/optional/repeated.
//
// For nested types, field names use dot notation (e.g., "address.street").
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var schemaInfos []SchemaInfo
	for _, field := range file.pqFile.Schema().Fields() {
		schemaInfos = append(schemaInfos, extractFieldInfo(field, "", false)...)
	}

	return schemaInfos, nil
}

// extractFieldInfo recursively extracts schema information from a field,
// tracking whether any parent field is repeated.
func extractFieldInfo(field parquet.Field, prefix string, parentRepeated bool) []SchemaInfo {
	var infos []SchemaInfo

	fieldName := field.Name()
	if prefix != "" {
		fieldName = prefix + "." + fieldName
	}

	isRepeated := parentRepeated || field.Repeated()

	// Groups contribute only their leaf fields
	if childFields := field.Fields(); len(childFields) > 0 {
		for _, child := range childFields {
			infos = append(infos, extractFieldInfo(child, fieldName, isRepeated)...)
		}
		return infos
	}

	arrowName := ""
	if !isRepeated {
		if dt, err := arrowType(field); err == nil {
			arrowName = dt.String()
		}
	}

	infos = append(infos, SchemaInfo{
		Name:         fieldName,
		Type:         getUserFriendlyType(field),
		PhysicalType: getPhysicalType(field),
		LogicalType:  getLogicalType(field),
		ArrowType:    arrowName,
		Required:     field.Required(),
		Optional:     field.Optional(),
		Repeated:     isRepeated,
	})

	return infos
}

// ArrowSchema maps a flat parquet schema to an Arrow schema, one field per
// top-level column, in file order.
func ArrowSchema(schema *parquet.Schema) (*arrow.Schema, error) {
	fields := schema.Fields()
	out := make([]arrow.Field, 0, len(fields))
	for _, f := range fields {
		if len(f.Fields()) > 0 || f.Repeated() {
			return nil, fmt.Errorf("%w: %q is nested or repeated", ErrUnsupportedColumn, f.Name())
		}
		dt, err := arrowType(f)
		if err != nil {
			return nil, err
		}
		out = append(out, arrow.Field{Name: f.Name(), Type: dt, Nullable: f.Optional()})
	}
	return arrow.NewSchema(out, nil), nil
}

// arrowType returns the Arrow type a leaf parquet field decodes into.
func arrowType(field parquet.Field) (arrow.DataType, error) {
	typ := field.Type()
	if typ == nil {
		return nil, fmt.Errorf("%w: %q has no type", ErrUnsupportedColumn, field.Name())
	}
	lt := typ.LogicalType()

	switch typ.Kind() {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case parquet.Int32:
		if lt != nil {
			switch {
			case lt.Date != nil:
				return arrow.FixedWidthTypes.Date32, nil
			case lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 8:
				return arrow.PrimitiveTypes.Int8, nil
			case lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 16:
				return arrow.PrimitiveTypes.Int16, nil
			}
		}
		return arrow.PrimitiveTypes.Int32, nil
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				return arrow.FixedWidthTypes.Timestamp_ms, nil
			case lt.Timestamp.Unit.Micros != nil:
				return arrow.FixedWidthTypes.Timestamp_us, nil
			default:
				return arrow.FixedWidthTypes.Timestamp_ns, nil
			}
		}
		return arrow.PrimitiveTypes.Int64, nil
	case parquet.Int96:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	case parquet.Float:
		return arrow.PrimitiveTypes.Float32, nil
	case parquet.Double:
		return arrow.PrimitiveTypes.Float64, nil
	case parquet.ByteArray:
		if isStringLogical(lt) {
			return arrow.BinaryTypes.String, nil
		}
		return arrow.BinaryTypes.Binary, nil
	case parquet.FixedLenByteArray:
		return &arrow.FixedSizeBinaryType{ByteWidth: typ.Length()}, nil
	default:
		return nil, fmt.Errorf("%w: %q has physical type %s", ErrUnsupportedColumn, field.Name(), getPhysicalType(field))
	}
}

func isStringLogical(lt *format.LogicalType) bool {
	return lt != nil && (lt.UTF8 != nil || lt.Enum != nil || lt.Json != nil)
}

// appendValue appends one parquet value to the builder of its Arrow column.
func appendValue(b array.Builder, v parquet.Value) error {
	if v.IsNull() {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(v.Boolean())
	case *array.Int8Builder:
		b.Append(int8(v.Int32()))
	case *array.Int16Builder:
		b.Append(int16(v.Int32()))
	case *array.Int32Builder:
		b.Append(v.Int32())
	case *array.Int64Builder:
		b.Append(v.Int64())
	case *array.Date32Builder:
		b.Append(arrow.Date32(v.Int32()))
	case *array.TimestampBuilder:
		if v.Kind() == parquet.Int96 {
			b.Append(arrow.Timestamp(int96Nanos(v.Int96())))
		} else {
			b.Append(arrow.Timestamp(v.Int64()))
		}
	case *array.Float32Builder:
		b.Append(v.Float())
	case *array.Float64Builder:
		b.Append(v.Double())
	case *array.StringBuilder:
		b.Append(string(v.ByteArray()))
	case *array.BinaryBuilder:
		b.Append(v.ByteArray())
	case *array.FixedSizeBinaryBuilder:
		b.Append(v.ByteArray())
	default:
		return fmt.Errorf("%w: no decoder for %T", ErrUnsupportedColumn, b)
	}
	return nil
}

// int96Nanos converts a legacy INT96 timestamp (nanoseconds of day followed
// by a Julian day number) to nanoseconds since the Unix epoch.
func int96Nanos(v deprecated.Int96) int64 {
	nanosOfDay := int64(uint64(v[1])<<32 | uint64(v[0]))
	days := int64(v[2]) - julianUnixEpoch
	return days*86400*1_000_000_000 + nanosOfDay
}

// getPhysicalType returns the physical type name of a Parquet field.
func getPhysicalType(field parquet.Field) string {
	if field.Type() == nil {
		return "GROUP"
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// getLogicalType returns the logical type name of a Parquet field.
func getLogicalType(field parquet.Field) string {
	if field.Type() == nil {
		return ""
	}

	logicalType := field.Type().LogicalType()
	if logicalType == nil {
		return ""
	}

	return logicalType.String()
}

// getUserFriendlyType returns a user-friendly type name for a Parquet field.
//
// This converts Parquet's physical and logical types into simpler, more
// recognizable type names for end users.
func getUserFriendlyType(field parquet.Field) string {
	if field.Type() == nil {
		return "GROUP"
	}

	lt := field.Type().LogicalType()
	if lt != nil {
		switch {
		case lt.UTF8 != nil:
			return "STRING"
		case lt.Enum != nil:
			return "ENUM"
		case lt.UUID != nil:
			return "UUID"
		case lt.Date != nil:
			return "DATE"
		case lt.Time != nil:
			return "TIME"
		case lt.Timestamp != nil:
			return "TIMESTAMP"
		case lt.Decimal != nil:
			return "DECIMAL"
		case lt.Json != nil:
			return "JSON"
		case lt.Bson != nil:
			return "BSON"
		case lt.Integer != nil:
			return fmt.Sprintf("INT%d", lt.Integer.BitWidth)
		}
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT32"
	case parquet.Double:
		return "FLOAT64"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}
