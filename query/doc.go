// Package query parses the SQL subset understood by pqsql and hosts the
// scalar function registry.
//
// The accepted grammar is a single statement:
//
//	SELECT <item> [, <item> ...]
//	FROM <table> [[AS] alias]
//	[WHERE <expr>]
//	[LIMIT n [OFFSET m]]
//
// where an item is *, t.* or an expression with an optional alias.
// Expressions support:
//   - Literals: integers, decimals, 'strings', TRUE, FALSE, NULL
//   - Columns, optionally qualified: col, t.col, "quoted col"
//   - Arithmetic: + - * / % and unary minus
//   - Comparison: = != <> < > <= >=
//   - Boolean logic: AND, OR, NOT
//   - Predicates: IS [NOT] NULL, [NOT] IN (...), [NOT] BETWEEN, [NOT] LIKE
//   - CAST(expr AS type) and scalar function calls
//
// Keywords are case-insensitive. Joins, aggregates, sorting and subqueries
// are rejected with a SyntaxError.
//
// # Basic Usage
//
//	stmt, err := query.Parse("SELECT int_col FROM alltypes_plain WHERE id > 1")
//	if err != nil {
//	    log.Fatal(err) // errors.Is(err, query.ErrSyntax)
//	}
//	fmt.Println(stmt.TableName, stmt.Filter)
//
// Parse only builds the AST. Name resolution and type checking happen when
// the statement is turned into a logical plan.
//
// # Functions
//
// Scalar functions are looked up in the registry returned by
// GetGlobalRegistry:
//   - String: UPPER, LOWER, LENGTH, TRIM, LTRIM, RTRIM, CONCAT, SUBSTRING,
//     REPLACE, REVERSE, STARTS_WITH, ENDS_WITH, CONTAINS
//   - Math: ABS, ROUND, FLOOR, CEIL, SQRT, POW, SIGN, MOD
//   - Conditional: COALESCE, NULLIF
//
// Every function reports its result type from its argument types, so the
// planner can type check calls before any data is read.
package query
