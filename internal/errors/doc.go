// Package errors provides structured, coded errors for stakeview.
//
// Every failure that reaches a resource's error channel or the CLI carries a
// code that maps to a short message and a longer explanation:
//
//   - fetch: a data source failed (node query, indexer request, blob lookup)
//   - transform: mapping or rendering already-fetched data failed
//   - source: a data source was misconfigured or returned an unexpected shape
//   - config: stakeview.json could not be loaded or is invalid
//   - cli: bad command-line input
//
// # Usage
//
//	err := errors.New(errors.CodeTransformPanic).
//	    WithDetail("formatting commission").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Transform panicked
//	//
//	//   formatting commission
//	//
//	//   Caused by: runtime error: invalid memory address
package errors
