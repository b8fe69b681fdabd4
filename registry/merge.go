package registry

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/typemodel"
)

// Merge integrates every type of other into r. Names absent from r are
// deep-copied together with their transitive dependencies; names present
// in both are compared by structural equality: identical definitions are
// skipped silently, differing ones fail with DefinitionMismatch unless
// allowOverride is set, in which case r's definition is replaced in place
// and every dependent layout is recomputed.
//
// Conflicts are detected before anything is copied: on error the registry
// is left exactly as it was.
func (r *Registry) Merge(other *Registry, allowOverride bool) error {
	if other == nil || other == r {
		return nil
	}

	names := make([]string, 0, len(other.types))
	for name := range other.types {
		names = append(names, name)
	}
	sort.Strings(names)

	// Phase 1: conflict detection, no mutation.
	var overrides []string
	for _, name := range names {
		ot := other.types[name]
		st, bound := r.types[name]
		if !bound {
			continue
		}
		if st.Name == ot.Name && typemodel.Equal(st, ot) {
			continue
		}
		if !allowOverride {
			return errors.Mismatch(errors.OpMerge, name)
		}
		overrides = append(overrides, name)
	}

	// Phase 2: copy shells for canonical types r does not hold yet.
	created := make(map[string]*typemodel.Type)
	for _, name := range names {
		ot := other.types[name]
		if name != ot.Name {
			continue // alias entries bind after their targets exist
		}
		if _, bound := r.types[name]; !bound {
			created[name] = copyShell(ot)
		}
	}

	resolve := func(name string) *typemodel.Type {
		if t, ok := created[name]; ok {
			return t
		}
		return r.types[name]
	}

	// Phase 3: link the copies against r's universe. Nothing commits yet.
	for name, shell := range created {
		linkRefs(shell, other.types[name], resolve)
	}

	// Phase 4: stage overrides. Canonical definitions get fresh shells
	// that are copied over the existing instance at commit, so dependent
	// types keep referencing the same instance; alias entries are
	// rebound.
	type rebind struct {
		name   string
		target *typemodel.Type
	}
	var rebinds []rebind
	replacements := make(map[string]*typemodel.Type, len(overrides))
	overridden := make(map[string]bool, len(overrides))
	for _, name := range overrides {
		ot := other.types[name]
		st := r.types[name]
		switch {
		case name != ot.Name:
			// Other binds this name as an alias.
			rebinds = append(rebinds, rebind{name, resolve(ot.Name)})
		case st.Name != name:
			// r held an alias where other defines a canonical type.
			shell := copyShell(ot)
			linkRefs(shell, ot, resolve)
			rebinds = append(rebinds, rebind{name, shell})
		default:
			fresh := copyShell(ot)
			linkRefs(fresh, ot, resolve)
			replacements[name] = fresh
			overridden[name] = true
		}
	}

	// Phase 5: an override is a full re-resize, every layout containing
	// an overridden type is recomputed against the new definition. The
	// plan is validated before anything commits: a layout the new sizes
	// cannot satisfy leaves the registry exactly as it was.
	var plan map[string]*layoutPlan
	if len(overridden) > 0 {
		preset := make(map[string]*layoutPlan, len(replacements))
		for name, fresh := range replacements {
			preset[name] = &layoutPlan{size: fresh.Size}
		}
		var err error
		plan, err = r.planRelayout(nil, overridden, preset)
		if err != nil {
			return err
		}
	}

	// Commit: copied shells, rebound names, overridden definitions,
	// aliases of other that are new to r, container templates, then the
	// staged relayout.
	for name, shell := range created {
		r.types[name] = shell
	}
	for _, b := range rebinds {
		r.types[b.name] = b.target
	}
	for name, fresh := range replacements {
		*r.types[name] = *fresh
	}
	for _, name := range names {
		ot := other.types[name]
		if name == ot.Name {
			continue
		}
		if _, bound := r.types[name]; !bound {
			r.types[name] = resolve(ot.Name)
		}
	}
	for name, kind := range other.containers {
		if _, ok := r.containers[name]; !ok {
			r.containers[name] = kind
		}
	}
	if len(overrides) > 0 {
		r.retarget()
		r.commitRelayout(plan)
	}

	Logger().Debug("merged registry",
		zap.Int("copied", len(created)),
		zap.Int("overridden", len(overrides)))
	return nil
}

// copyShell duplicates a type without its references; linkRefs fills
// those in against the receiving registry.
func copyShell(t *typemodel.Type) *typemodel.Type {
	c := &typemodel.Type{
		Name:          t.Name,
		Kind:          t.Kind,
		Size:          t.Size,
		Count:         t.Count,
		Numeric:       t.Numeric,
		ContainerKind: t.ContainerKind,
		Meta:          t.Meta.Clone(),
	}
	if len(t.Values) > 0 {
		c.Values = make([]typemodel.EnumValue, len(t.Values))
		copy(c.Values, t.Values)
	}
	if len(t.Fields) > 0 {
		c.Fields = make([]typemodel.Field, len(t.Fields))
		for i, f := range t.Fields {
			c.Fields[i] = typemodel.Field{Name: f.Name, Offset: f.Offset}
		}
	}
	return c
}

// linkRefs resolves the reference slots of dst, shaped like src, through
// the resolve function.
func linkRefs(dst, src *typemodel.Type, resolve func(string) *typemodel.Type) {
	for i := range dst.Fields {
		dst.Fields[i].Type = resolve(src.Fields[i].Type.Name)
	}
	if src.Elem != nil {
		dst.Elem = resolve(src.Elem.Name)
	}
}

// retarget restores the same-registry reference invariant after overrides:
// every reference slot must point at the instance currently bound to its
// name.
func (r *Registry) retarget() {
	for name, t := range r.types {
		if name != t.Name {
			continue
		}
		for i, f := range t.Fields {
			if bound := r.types[f.Type.Name]; bound != nil && bound != f.Type {
				t.Fields[i].Type = bound
			}
		}
		if t.Elem != nil {
			if bound := r.types[t.Elem.Name]; bound != nil && bound != t.Elem {
				t.Elem = bound
			}
		}
	}
}
