// Package typemodel defines the type categories and layout data used to
// describe binary memory layouts of C/C++-like data independently of any
// compiler.
//
// A Type describes one category of layout: a numeric scalar, an enum, a
// compound (struct-like, with an ordered field list), a fixed-size array, a
// pointer, a handle-sized container (vector, string) or an opaque blob.
// Types are identified by absolute, /-separated names; derived types encode
// their modifiers in the name itself ("/A*", "/A[3]", "/std/vector</double>").
//
// Types are immutable once built except through the registry resize
// operation, which is the only code allowed to rewrite sizes and offsets.
//
// # Structural Equality
//
// Equal compares two types by category tag and category-specific layout
// data, following references by canonical name rather than object identity,
// so types owned by different registries can be compared. Metadata is
// informational only and never participates in equality.
package typemodel
