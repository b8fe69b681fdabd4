package registry

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/typemodel"
)

// DefaultPointerSize is the pointer size assumed when no option overrides
// it: 8 bytes, a 64-bit target.
const DefaultPointerSize = 8

// ContainerKind is a registered container template. Build uses it when a
// type expression instantiates the template with an element type; the
// resulting container is handle-sized (Size), independent of the element.
type ContainerKind struct {
	Name string // template name, e.g. "/std/vector"
	Tag  string // wire kind, e.g. "vector"
	Size uint32 // fixed handle size in bytes
}

// Registry owns the full set of Type instances for one consistent
// universe. The zero value is not usable; use NewRegistry.
type Registry struct {
	types       map[string]*typemodel.Type
	containers  map[string]ContainerKind
	pointerSize uint32
}

// Option configures a new registry.
type Option func(*Registry)

// WithPointerSize sets the platform pointer size used for pointer types
// built against this registry.
func WithPointerSize(size uint32) Option {
	return func(r *Registry) {
		r.pointerSize = size
	}
}

// NewRegistry creates an empty registry with the std container templates
// (/std/vector, /std/string) pre-registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		types:       make(map[string]*typemodel.Type),
		containers:  make(map[string]ContainerKind),
		pointerSize: DefaultPointerSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.containers["/std/vector"] = ContainerKind{Name: "/std/vector", Tag: "vector", Size: 24}
	r.containers["/std/string"] = ContainerKind{Name: "/std/string", Tag: "string", Size: 32}
	return r
}

// PointerSize returns the platform pointer size of this registry.
func (r *Registry) PointerSize() uint32 {
	return r.pointerSize
}

// RegisterContainer installs a container template. Re-registering an
// identical template is a no-op; a conflicting one fails with BadName.
func (r *Registry) RegisterContainer(kind ContainerKind) error {
	if err := typemodel.ValidateName(kind.Name); err != nil {
		return err
	}
	if kind.Tag == "" || kind.Size == 0 {
		return errors.BadName(errors.OpValidate, kind.Name, "container template needs a tag and a size")
	}
	if existing, ok := r.containers[kind.Name]; ok {
		if existing == kind {
			return nil
		}
		return errors.BadName(errors.OpValidate, kind.Name, "container template already registered differently")
	}
	r.containers[kind.Name] = kind
	return nil
}

// ContainerKinds returns every registered container template, sorted by
// template name.
func (r *Registry) ContainerKinds() []ContainerKind {
	kinds := make([]ContainerKind, 0, len(r.containers))
	for _, k := range r.containers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds
}

// Get returns the type bound to name, or nil when absent. Aliases resolve
// transparently to their target. Get never builds.
func (r *Registry) Get(name string) *typemodel.Type {
	return r.types[name]
}

// Has reports whether name is bound.
func (r *Registry) Has(name string) bool {
	return r.types[name] != nil
}

// Add installs a type whose references are already registry members.
// Installing an identical definition again is a no-op; a conflicting one
// fails with BadName. Use AddSet for graphs with reference cycles.
func (r *Registry) Add(t *typemodel.Type) error {
	if err := typemodel.Validate(t); err != nil {
		return err
	}
	for _, ref := range containedRefs(t) {
		if r.types[ref.Name] != ref {
			return errors.New(errors.OpValidate, errors.KindUndefined).
				Type(t.Name).Detail("reference %q is not a member of this registry", ref.Name).Build()
		}
	}
	if existing, ok := r.types[t.Name]; ok {
		if existing == t || typemodel.Equal(existing, t) {
			return nil
		}
		return errors.BadName(errors.OpValidate, t.Name, "already defined differently")
	}
	r.types[t.Name] = t
	return nil
}

// AddSet installs a group of types whose references may point at each
// other (pointer cycles included). References must resolve within the
// union of the set and the existing members, by instance identity. The
// whole set commits or nothing does.
func (r *Registry) AddSet(types []*typemodel.Type) error {
	set := make(map[string]*typemodel.Type, len(types))
	for _, t := range types {
		if err := typemodel.Validate(t); err != nil {
			return err
		}
		if prev, ok := set[t.Name]; ok && prev != t {
			return errors.BadName(errors.OpValidate, t.Name, "duplicate definition in set")
		}
		set[t.Name] = t
	}
	for _, t := range set {
		if _, exists := r.types[t.Name]; exists {
			return errors.BadName(errors.OpValidate, t.Name, "already defined")
		}
		for _, ref := range containedRefs(t) {
			if set[ref.Name] != ref && r.types[ref.Name] != ref {
				return errors.New(errors.OpValidate, errors.KindUndefined).
					Type(t.Name).Detail("reference %q does not resolve in the set or the registry", ref.Name).Build()
			}
		}
	}
	for name, t := range set {
		r.types[name] = t
	}
	return nil
}

// Alias binds newName to the type found under target. It fails with
// Undefined when target does not resolve and with BadName when newName is
// already bound to a different type; re-aliasing to the same type is
// idempotent.
func (r *Registry) Alias(target, newName string) error {
	t := r.types[target]
	if t == nil {
		return errors.Undefined(errors.OpAlias, target)
	}
	if err := typemodel.ValidateName(newName); err != nil {
		return errors.BadName(errors.OpAlias, newName, "malformed alias name")
	}
	if existing, ok := r.types[newName]; ok {
		if existing == t {
			return nil
		}
		return errors.BadName(errors.OpAlias, newName, "already bound to a different type")
	}
	r.types[newName] = t
	Logger().Debug("alias bound",
		zap.String("name", newName),
		zap.String("target", t.Name))
	return nil
}

// Names returns every canonical type name, sorted. Alias names are not
// included; see Aliases.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name, t := range r.types {
		if name == t.Name {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Types returns every canonical type, sorted by name.
func (r *Registry) Types() []*typemodel.Type {
	names := r.Names()
	out := make([]*typemodel.Type, len(names))
	for i, name := range names {
		out[i] = r.types[name]
	}
	return out
}

// Each calls fn for every canonical type in sorted name order. Iteration
// stops early when fn returns false.
func (r *Registry) Each(fn func(*typemodel.Type) bool) {
	for _, name := range r.Names() {
		if !fn(r.types[name]) {
			return
		}
	}
}

// AliasEntry is one registry-level name redirect.
type AliasEntry struct {
	Name   string
	Target string
}

// Aliases returns every alias binding, sorted by alias name.
func (r *Registry) Aliases() []AliasEntry {
	var out []AliasEntry
	for name, t := range r.types {
		if name != t.Name {
			out = append(out, AliasEntry{Name: name, Target: t.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NumTypes returns the number of canonical types.
func (r *Registry) NumTypes() int {
	n := 0
	for name, t := range r.types {
		if name == t.Name {
			n++
		}
	}
	return n
}

// containedRefs lists the types t references: field types for compounds
// and the element for arrays, pointers and containers.
func containedRefs(t *typemodel.Type) []*typemodel.Type {
	switch t.Kind {
	case typemodel.KindCompound:
		refs := make([]*typemodel.Type, len(t.Fields))
		for i, f := range t.Fields {
			refs[i] = f.Type
		}
		return refs
	case typemodel.KindArray, typemodel.KindPointer, typemodel.KindContainer:
		return []*typemodel.Type{t.Elem}
	default:
		return nil
	}
}

// valueRefs is containedRefs without pointer edges: the containment
// relation that propagates layout changes. Pointer size is platform-fixed
// and independent of the pointee, which is what bounds resize recursion.
func valueRefs(t *typemodel.Type) []*typemodel.Type {
	if t.Kind == typemodel.KindPointer {
		return nil
	}
	return containedRefs(t)
}
