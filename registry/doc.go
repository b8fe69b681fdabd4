// Package registry implements the authoritative, name-indexed store of a
// consistent type graph.
//
// A Registry owns every Type it holds: lookups return shared, non-owning
// references that stay valid only as long as the registry lives. Foreign
// types never cross registries by reference; they travel by name (Merge,
// Import) and are re-resolved in the receiving registry.
//
// # Key Operations
//
//	Get      - pure lookup, never builds
//	Build    - type-expression builder with canonical-name caching
//	Alias    - bind an extra name to an existing type
//	Merge    - structural-equality merge of a second registry
//	Resize   - propagate size changes through dependent layouts
//	Import   - dispatch to a registered format driver, commit via Merge
//	Export   - dispatch to a registered format driver
//
// # Type Expressions
//
// Build parses expressions of the form BaseName Modifier*, where a
// modifier is '*' (pointer), '[N]' (fixed-size array) or a container
// instantiation written template-style in the base name itself:
//
//	reg.Build("/double*")              // pointer
//	reg.Build("/double[4]")            // array
//	reg.Build("/double[4][2]")         // array of arrays
//	reg.Build("/std/vector</double>")  // container instance
//
// Derived types are cached under their canonical name and identity-stable:
// building the same expression twice returns the same instance.
//
// # Concurrency
//
// The registry performs no internal locking. Callers must serialize all
// mutating operations; concurrent readers are safe only between mutations.
// Resize and Merge with overrides mutate types in place, invalidating any
// value materialized against the old layout.
package registry
