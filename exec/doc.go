// Package exec runs logical plans over Arrow record batches.
//
// CreatePhysicalPlan sizes the pipeline for a memory budget: the estimated
// bytes of one row decide the batch size (at most MaxBatchRows rows) and the
// number of row groups the scan decodes concurrently. Operators push their
// batches downstream through a ProduceFunc; Collect gathers the non-empty
// batches of the root in order.
package exec
