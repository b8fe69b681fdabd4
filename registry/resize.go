package registry

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/typemodel"
)

// Resize applies new byte sizes to the named types and propagates the
// change through every type that transitively contains them as a compound
// field, array element or container element. Pointer containment does not
// propagate: pointer size is platform-fixed and independent of the
// pointee, which bounds the recursion even for mutually referential
// structures.
//
// Compound fields keep their order; existing inter-field gaps and trailing
// padding are preserved. A compound named in the size map treats the
// mapped size as a trusted ceiling its fields must fit under.
//
// The whole layout is computed first and committed only when every
// invariant holds; on error the registry is left untouched.
func (r *Registry) Resize(sizes map[string]uint32) error {
	if len(sizes) == 0 {
		return nil
	}

	explicit := make(map[string]uint32, len(sizes))
	seed := make(map[string]bool, len(sizes))
	for name, size := range sizes {
		t := r.types[name]
		if t == nil {
			return errors.Undefined(errors.OpResize, name)
		}
		if !t.Kind.IsResizable() {
			return errors.InvalidSize(errors.OpResize, t.Name, t.Kind.String()+" types are not resizable")
		}
		if size == 0 {
			return errors.InvalidSize(errors.OpResize, t.Name, "size must be positive")
		}
		explicit[t.Name] = size
		seed[t.Name] = true
	}

	plan, err := r.planRelayout(explicit, seed, nil)
	if err != nil {
		return err
	}
	r.commitRelayout(plan)

	Logger().Debug("resized",
		zap.Int("requested", len(sizes)),
		zap.Int("affected", len(plan)))
	return nil
}

// layoutPlan is the staged new layout of one type.
type layoutPlan struct {
	offsets []uint32 // compound field offsets, nil otherwise
	size    uint32
}

// planRelayout computes the new layout of every type affected by the seed
// set, in containment dependency order, without touching the registry.
// preset holds layouts already decided by the caller (merge overrides);
// those types keep the given layout and only their dependents are
// recomputed.
func (r *Registry) planRelayout(explicit map[string]uint32, seed map[string]bool, preset map[string]*layoutPlan) (map[string]*layoutPlan, error) {
	// Reverse containment index over non-pointer edges.
	dependents := make(map[string][]*typemodel.Type)
	for name, t := range r.types {
		if name != t.Name {
			continue
		}
		for _, ref := range valueRefs(t) {
			dependents[ref.Name] = append(dependents[ref.Name], t)
		}
	}

	// Closure of the seed under "is contained by".
	affected := make(map[string]bool)
	queue := make([]string, 0, len(seed))
	for name := range seed {
		affected[name] = true
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[name] {
			if !affected[dep.Name] {
				affected[dep.Name] = true
				queue = append(queue, dep.Name)
			}
		}
	}

	plan := make(map[string]*layoutPlan, len(affected))
	for name, p := range preset {
		plan[name] = p
	}
	names := make([]string, 0, len(affected))
	for name := range affected {
		names = append(names, name)
	}
	sort.Strings(names)

	// Contained types settle before their containers. The value-containment
	// relation is acyclic: a value type cannot contain itself without
	// indirection, and pointer edges are excluded.
	var visit func(t *typemodel.Type) error
	visit = func(t *typemodel.Type) error {
		if _, done := plan[t.Name]; done {
			return nil
		}
		for _, ref := range valueRefs(t) {
			if affected[ref.Name] {
				if err := visit(ref); err != nil {
					return err
				}
			}
		}
		p, err := r.planType(t, explicit, plan)
		if err != nil {
			return err
		}
		plan[t.Name] = p
		return nil
	}
	for _, name := range names {
		if err := visit(r.types[name]); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// plannedSize returns the staged size of name, falling back to the stored
// size for types outside the closure.
func (r *Registry) plannedSize(name string, plan map[string]*layoutPlan) uint32 {
	if p, ok := plan[name]; ok {
		return p.size
	}
	return r.types[name].Size
}

func (r *Registry) planType(t *typemodel.Type, explicit map[string]uint32, plan map[string]*layoutPlan) (*layoutPlan, error) {
	switch t.Kind {
	case typemodel.KindNumeric, typemodel.KindOpaque, typemodel.KindEnum:
		size := t.Size
		if s, ok := explicit[t.Name]; ok {
			size = s
		}
		return &layoutPlan{size: size}, nil

	case typemodel.KindArray:
		elem := r.plannedSize(t.Elem.Name, plan)
		total := uint64(elem) * uint64(t.Count)
		if total == 0 || total > math.MaxUint32 {
			return nil, errors.InvalidSize(errors.OpResize, t.Name, "array size out of range")
		}
		return &layoutPlan{size: uint32(total)}, nil

	case typemodel.KindContainer:
		// Handle-sized: the element may grow, the handle does not.
		return &layoutPlan{size: t.Size}, nil

	case typemodel.KindCompound:
		return r.planCompound(t, explicit, plan)

	default:
		return &layoutPlan{size: t.Size}, nil
	}
}

func (r *Registry) planCompound(t *typemodel.Type, explicit map[string]uint32, plan map[string]*layoutPlan) (*layoutPlan, error) {
	offsets := make([]uint32, len(t.Fields))
	var newEnd, oldEnd uint32
	for i, f := range t.Fields {
		if i == 0 {
			offsets[0] = f.Offset
		} else {
			// Preserve pre-existing inter-field padding. After an override
			// the stored offsets may predate the dependency's new size;
			// the clamp repacks those contiguously.
			gap := uint32(0)
			if f.Offset > oldEnd {
				gap = f.Offset - oldEnd
			}
			offsets[i] = newEnd + gap
		}
		oldEnd = f.End()
		newEnd = offsets[i] + r.plannedSize(f.Type.Name, plan)
	}

	if ceiling, ok := explicit[t.Name]; ok {
		if newEnd > ceiling {
			return nil, errors.New(errors.OpResize, errors.KindInvalidSize).
				Type(t.Name).Detail("fields end at %d, past the declared size %d", newEnd, ceiling).Build()
		}
		return &layoutPlan{size: ceiling, offsets: offsets}, nil
	}

	trailing := uint32(0)
	if t.Size > oldEnd {
		trailing = t.Size - oldEnd
	}
	size := newEnd + trailing
	if size == 0 {
		size = t.Size
	}
	return &layoutPlan{size: size, offsets: offsets}, nil
}

// commitRelayout applies a staged layout. This is the only place, together
// with merge overrides, where type sizes and field offsets ever change.
func (r *Registry) commitRelayout(plan map[string]*layoutPlan) {
	for name, p := range plan {
		t := r.types[name]
		t.Size = p.size
		for i := range p.offsets {
			t.Fields[i].Offset = p.offsets[i]
		}
	}
}
