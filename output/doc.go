// Package output reports query results.
//
// A Reporter decodes collected batches with a caller supplied DecodeFunc and
// hands the rows to a Formatter. Decoding happens before anything is
// written, so a batch that fails to decode leaves the output untouched.
//
// # Supported Formats
//
//   - text: "RecordBatch has N rows and M columns" per batch, then one
//     "label: value" line per row (default)
//   - jsonl: one JSON object per row, keys in column order
//   - csv: header row plus data rows, with formula injection sanitizing
//   - table: an ASCII table rendered with tablewriter
//
// # Basic Usage
//
//	sink, err := output.NewReporter("csv", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	decoder := &decode.Decoder{Types: types}
//	if err := sink.Report(batches, decoder.Decode); err != nil {
//	    log.Fatal(err)
//	}
//
// # Column Order
//
// WithOrder selects and reorders columns by batch position; WithLabels
// renames them:
//
//	sink, _ := output.NewReporter("text", os.Stdout,
//	    output.WithOrder([]int{2, 0, 1}),
//	    output.WithLabels([]string{"Date", "Int", "Double"}))
//
// # Errors
//
// Write failures are wrapped in ErrSink. Decode failures are returned as
// the DecodeFunc reported them.
package output
