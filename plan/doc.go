// Package plan builds and optimizes logical query plans.
//
// A Builder resolves a parsed statement against a catalog: names become
// column positions, literals get Arrow types and operands of mixed numeric
// types are wrapped in casts to their common type. The result is an
// immutable tree of Scan, Filter, Projection and Limit nodes.
//
// The Optimizer applies rewrite rules in order and verifies after each one
// that the output schema (column names and types) did not change.
package plan
