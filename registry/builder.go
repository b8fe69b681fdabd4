package registry

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/typemodel"
)

// modifier is one parsed type-expression suffix.
type modifier struct {
	kind  typemodel.Kind // KindPointer or KindArray
	count uint32         // element count for arrays
}

// Build parses a type-expression string and returns the type it denotes,
// constructing and caching any derived types along the way. The base name
// must already resolve in the registry (Undefined otherwise); a malformed
// expression or an unknown container kind fails with BadName.
func (r *Registry) Build(expr string) (*typemodel.Type, error) {
	if t := r.types[expr]; t != nil {
		return t, nil
	}

	base, mods, err := parseExpr(expr)
	if err != nil {
		return nil, err
	}

	t, err := r.resolveBase(base)
	if err != nil {
		return nil, err
	}

	// Modifiers were stripped right-to-left; apply innermost first.
	for i := len(mods) - 1; i >= 0; i-- {
		t, err = r.applyModifier(t, mods[i])
		if err != nil {
			return nil, err
		}
	}

	Logger().Debug("built type expression",
		zap.String("expr", expr),
		zap.String("canonical", t.Name))
	return t, nil
}

// parseExpr splits an expression into its base name and modifier suffixes,
// rightmost modifier first.
func parseExpr(expr string) (string, []modifier, error) {
	if expr == "" {
		return "", nil, errors.BadName(errors.OpParse, expr, "empty expression")
	}
	if !strings.HasPrefix(expr, typemodel.Separator) {
		return "", nil, errors.BadName(errors.OpParse, expr, "expression is not absolute")
	}

	rest := expr
	var mods []modifier
	for {
		if strings.HasSuffix(rest, "*") {
			mods = append(mods, modifier{kind: typemodel.KindPointer})
			rest = rest[:len(rest)-1]
			continue
		}
		if strings.HasSuffix(rest, "]") {
			open := strings.LastIndexByte(rest, '[')
			if open <= 0 {
				return "", nil, errors.BadName(errors.OpParse, expr, "unmatched ']'")
			}
			count, err := strconv.ParseUint(rest[open+1:len(rest)-1], 10, 32)
			if err != nil || count == 0 {
				return "", nil, errors.BadName(errors.OpParse, expr, "array count must be a positive integer")
			}
			mods = append(mods, modifier{kind: typemodel.KindArray, count: uint32(count)})
			rest = rest[:open]
			continue
		}
		break
	}

	if rest == typemodel.Separator {
		return "", nil, errors.BadName(errors.OpParse, expr, "missing base name")
	}
	return rest, mods, nil
}

// resolveBase resolves the base name of an expression: a plain lookup
// first, then container-template instantiation for bracketed names.
func (r *Registry) resolveBase(name string) (*typemodel.Type, error) {
	if t := r.types[name]; t != nil {
		return t, nil
	}

	if strings.HasSuffix(name, ">") {
		open := strings.IndexByte(name, '<')
		if open <= 0 {
			return nil, errors.BadName(errors.OpParse, name, "malformed container name")
		}
		kindName := name[:open]
		elemExpr := name[open+1 : len(name)-1]

		tmpl, ok := r.containers[kindName]
		if !ok {
			return nil, errors.BadName(errors.OpBuild, kindName, "unknown container kind")
		}

		elem, err := r.Build(elemExpr)
		if err != nil {
			return nil, err
		}

		canonical := typemodel.ContainerName(kindName, elem.Name)
		if t := r.types[canonical]; t != nil {
			return t, nil
		}
		t, err := typemodel.NewContainer(kindName, tmpl.Tag, elem, tmpl.Size)
		if err != nil {
			return nil, err
		}
		r.types[t.Name] = t
		return t, nil
	}

	if err := typemodel.ValidateName(name); err != nil {
		return nil, err
	}
	return nil, errors.Undefined(errors.OpBuild, name)
}

// applyModifier wraps cur in one derived type, reusing the cached instance
// when the canonical name is already bound.
func (r *Registry) applyModifier(cur *typemodel.Type, m modifier) (*typemodel.Type, error) {
	switch m.kind {
	case typemodel.KindPointer:
		name := typemodel.PointerName(cur.Name)
		if t := r.types[name]; t != nil {
			return t, nil
		}
		t, err := typemodel.NewPointer(cur, r.pointerSize)
		if err != nil {
			return nil, err
		}
		r.types[t.Name] = t
		return t, nil

	case typemodel.KindArray:
		name := typemodel.ArrayName(cur.Name, m.count)
		if t := r.types[name]; t != nil {
			return t, nil
		}
		if uint64(cur.Size)*uint64(m.count) > math.MaxUint32 {
			return nil, errors.InvalidSize(errors.OpBuild, name, "array size overflows")
		}
		t, err := typemodel.NewArray(cur, m.count)
		if err != nil {
			return nil, err
		}
		r.types[t.Name] = t
		return t, nil

	default:
		return nil, errors.BadName(errors.OpBuild, cur.Name, "unknown modifier")
	}
}
