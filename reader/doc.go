// Package reader provides functionality for reading Apache Parquet files.
//
// This package opens parquet files, maps their flat schema to an Arrow
// schema and decodes row groups into Arrow record batches. It also resolves
// glob locations to file lists and exposes schema introspection.
//
// # Basic Usage
//
// Decoding the first row group of a file:
//
//	r, err := reader.NewReader("alltypes_plain.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	records, err := r.ReadRowGroup(0, nil, 1024, memory.DefaultAllocator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range records {
//	    fmt.Println(rec.NumRows())
//	    rec.Release()
//	}
//
// # Type Mapping
//
// Parquet physical and logical types decode as follows:
//   - BOOLEAN: bool
//   - INT32: int32 (INT(8) and INT(16) become int8 and int16, DATE becomes date32)
//   - INT64: int64 (TIMESTAMP becomes timestamp with the matching unit)
//   - INT96: timestamp[ns]
//   - FLOAT, DOUBLE: float32, float64
//   - BYTE_ARRAY: binary (STRING, ENUM and JSON become utf8)
//   - FIXED_LEN_BYTE_ARRAY: fixed_size_binary
//
// Nested and repeated columns are rejected with ErrUnsupportedColumn;
// ExtractSchemaInfo still describes them.
//
// # Multi-file Locations
//
// ExpandPattern turns a glob such as "data/*.parquet" into a sorted list of
// files. Plain paths are returned unchanged.
//
// The package uses github.com/parquet-go/parquet-go for the underlying
// parquet file operations.
package reader
