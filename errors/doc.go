// Package errors provides structured error types for the typelib library.
//
// Errors are categorized by Op (which registry operation failed) and Kind
// (error category). The Error type includes rich context: the offending type
// name, a human-readable detail, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.OpResize, errors.KindInvalidSize).
//		Type("/Joints").
//		Detail("field %q ends past compound size", "bla").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Undefined(errors.OpBuild, "/Unknown")
//	err := errors.BadName(errors.OpAlias, "/A", "already bound to a different type")
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching with errors.Is compares Kind, and Op as well when the target sets
// one, so callers can test for a whole failure class:
//
//	if errors.Is(err, errors.Undefined("", "")) { ... }
package errors
