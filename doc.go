// Package typelib provides a runtime type registry and type-expression
// builder for describing the binary memory layout of C/C++-like data
// (structs, arrays, pointers, containers, enums) independently of any
// compiler.
//
// Values living in raw memory can be introspected, marshalled and reshaped
// safely even when their structure was discovered externally (from a
// header parser, an IDL file or a serialized catalog) rather than known at
// build time.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	typelib/             Root package with import/export configuration
//	├── typemodel/       Type categories, layout data, structural equality
//	├── registry/        Name-indexed type store: lookup, build, alias,
//	│                    merge, resize and format-driver dispatch
//	├── tlb/             Native XML persistence format driver
//	├── snapshot/        Compact binary snapshot driver (CBOR + zstd)
//	├── witimport/       WIT type graph importer with canonical-ABI layout
//	├── errors/          Structured error types for debugging
//	└── cmd/typelib/     CLI for inspecting, converting and reshaping
//	                     persisted type registries
//
// # Quick Start
//
// Load a persisted registry and build derived types against it:
//
//	reg := registry.NewRegistry()
//	if err := reg.Import("tlb", data, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	vec, err := reg.Build("/std/vector</double>")
//	arr, err := reg.Build("/double[4]")
//	ptr, err := reg.Build("/double*")
//
// Derived types are cached and identity-stable: building the same
// expression twice returns the same instance.
//
// # Resize
//
// When a base type's true size on the target platform differs from what
// was recorded, Resize propagates the change through every dependent
// layout:
//
//	err := reg.Resize(map[string]uint32{"/double": 4})
//
// Pointer sizes are platform-fixed and never follow their pointee.
//
// # Concurrency
//
// The registry does no internal locking: callers must serialize all
// mutating operations (Build, Alias, Merge, Resize, Import). Concurrent
// readers are safe only between mutations. Resize mutates types in place;
// values materialized against the old layout become invalid the instant it
// completes.
package typelib
