package errors

import (
	"fmt"
	"strings"
)

// Op indicates which registry operation the error occurred in
type Op string

const (
	OpParse    Op = "parse"    // type-expression parsing
	OpBuild    Op = "build"    // derived-type construction
	OpLookup   Op = "lookup"   // name resolution
	OpAlias    Op = "alias"    // alias binding
	OpMerge    Op = "merge"    // registry merge
	OpResize   Op = "resize"   // layout recomputation
	OpValidate Op = "validate" // type invariant checks
	OpImport   Op = "import"   // format driver import
	OpExport   Op = "export"   // format driver export
	OpConvert  Op = "convert"  // foreign type conversion
)

// Kind categorizes the error
type Kind string

const (
	KindBadName       Kind = "bad_name"
	KindUndefined     Kind = "undefined"
	KindMismatch      Kind = "definition_mismatch"
	KindInvalidSize   Kind = "invalid_size"
	KindImport        Kind = "import_error"
	KindExport        Kind = "export_error"
	KindUnknownDriver Kind = "unknown_driver"
	KindUnsupported   Kind = "unsupported"
	KindInvalidData   Kind = "invalid_data"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause    error
	Op       Op
	Kind     Kind
	TypeName string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.TypeName != "" {
		b.WriteString(": type ")
		b.WriteString(e.TypeName)
	}

	if e.Detail != "" {
		if e.TypeName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kind must match; Op is
// compared only when the target sets one, so a target with an empty Op
// matches the whole kind regardless of operation.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if e.Kind != t.Kind {
			return false
		}
		return t.Op == "" || e.Op == t.Op
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op Op, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Op:   op,
			Kind: kind,
		},
	}
}

// Type sets the offending type name
func (b *Builder) Type(name string) *Builder {
	b.err.TypeName = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadName creates a malformed-name or name-collision error
func BadName(op Op, name, detail string) *Error {
	return &Error{
		Op:       op,
		Kind:     KindBadName,
		TypeName: name,
		Detail:   detail,
	}
}

// Undefined creates an unknown-type error
func Undefined(op Op, name string) *Error {
	return &Error{
		Op:       op,
		Kind:     KindUndefined,
		TypeName: name,
		Detail:   "no such type",
	}
}

// Mismatch creates a definition-mismatch error for conflicting
// definitions of the same name
func Mismatch(op Op, name string) *Error {
	return &Error{
		Op:       op,
		Kind:     KindMismatch,
		TypeName: name,
		Detail:   "conflicting definitions",
	}
}

// InvalidSize creates a layout-invariant violation error
func InvalidSize(op Op, name, detail string) *Error {
	return &Error{
		Op:       op,
		Kind:     KindInvalidSize,
		TypeName: name,
		Detail:   detail,
	}
}

// ImportFailed wraps a format driver import failure
func ImportFailed(driver string, cause error) *Error {
	return &Error{
		Op:     OpImport,
		Kind:   KindImport,
		Detail: fmt.Sprintf("driver %q", driver),
		Cause:  cause,
	}
}

// ExportFailed wraps a format driver export failure
func ExportFailed(driver string, cause error) *Error {
	return &Error{
		Op:     OpExport,
		Kind:   KindExport,
		Detail: fmt.Sprintf("driver %q", driver),
		Cause:  cause,
	}
}

// UnknownDriver creates an unregistered-driver error
func UnknownDriver(op Op, tag string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindUnknownDriver,
		Detail: fmt.Sprintf("no format driver registered for %q", tag),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(op Op, what string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid input data error
func InvalidData(op Op, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(op Op, kind Kind, cause error, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
