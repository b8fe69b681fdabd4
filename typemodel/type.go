package typemodel

import (
	"math"

	"github.com/wippyai/typelib/errors"
)

// Metadata holds free-form annotations (origin file, mangled name, base
// classes). The core stores and round-trips it, never interprets it.
type Metadata map[string]string

// Clone returns a shallow copy; a nil map stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EnumValue binds one symbol to its integer representation.
type EnumValue struct {
	Symbol string
	Value  int64
}

// Field is one member of a compound type.
type Field struct {
	Type   *Type
	Name   string
	Offset uint32
}

// End returns the first byte past the field.
func (f Field) End() uint32 {
	return f.Offset + f.Type.Size
}

// Type describes the binary layout of one type. The kind-specific fields
// are only meaningful for the matching Kind: Numeric for KindNumeric,
// Values for KindEnum, Fields for KindCompound, Elem for KindArray,
// KindPointer and KindContainer, Count for KindArray, ContainerKind for
// KindContainer.
//
// A Type is immutable after construction; only the registry resize engine
// rewrites Size and field offsets, in place.
type Type struct {
	Elem          *Type
	Meta          Metadata
	Name          string
	ContainerKind string
	Fields        []Field
	Values        []EnumValue
	Size          uint32
	Count         uint32
	Numeric       NumericCategory
	Kind          Kind
}

// NullType is the sentinel for "absence of a type". It is never a member
// of any registry.
var NullType = &Type{Kind: KindNull}

// IsNull reports whether t is the null sentinel (or nil).
func (t *Type) IsNull() bool {
	return t == nil || t.Kind == KindNull
}

// IsOpaque reports whether t has a size but no internal structure.
func (t *Type) IsOpaque() bool {
	return t != nil && t.Kind == KindOpaque
}

// Namespace returns the namespace path of the type's name, with the
// trailing separator.
func (t *Type) Namespace() string {
	return NamespaceOf(t.Name)
}

// Basename returns the final segment of the type's name.
func (t *Type) Basename() string {
	return BasenameOf(t.Name)
}

// NewNumeric builds a numeric scalar type.
func NewNumeric(name string, size uint32, cat NumericCategory) (*Type, error) {
	t := &Type{Name: name, Kind: KindNumeric, Size: size, Numeric: cat}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewEnum builds an enumeration type. The value order is preserved.
func NewEnum(name string, size uint32, values []EnumValue) (*Type, error) {
	t := &Type{Name: name, Kind: KindEnum, Size: size, Values: values}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewCompound builds a struct-like type. Fields must already be in
// ascending offset order and fit within size.
func NewCompound(name string, size uint32, fields []Field) (*Type, error) {
	t := &Type{Name: name, Kind: KindCompound, Size: size, Fields: fields}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewOpaque builds a type with a size and no internal structure.
func NewOpaque(name string, size uint32) (*Type, error) {
	t := &Type{Name: name, Kind: KindOpaque, Size: size}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewArray builds a fixed-size array of count elements. The canonical name
// is derived from the element name.
func NewArray(elem *Type, count uint32) (*Type, error) {
	if elem.IsNull() {
		return nil, errors.InvalidData(errors.OpValidate, "array of null type")
	}
	name := ArrayName(elem.Name, count)
	total := uint64(elem.Size) * uint64(count)
	if total > math.MaxUint32 {
		return nil, errors.InvalidSize(errors.OpValidate, name, "array size out of range")
	}
	t := &Type{
		Name:  name,
		Kind:  KindArray,
		Size:  uint32(total),
		Elem:  elem,
		Count: count,
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewPointer builds a pointer to elem with the given platform pointer size.
func NewPointer(elem *Type, size uint32) (*Type, error) {
	if elem.IsNull() {
		return nil, errors.InvalidData(errors.OpValidate, "pointer to null type")
	}
	t := &Type{
		Name: PointerName(elem.Name),
		Kind: KindPointer,
		Size: size,
		Elem: elem,
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewContainer builds a handle-sized container instance. kind is the
// template name ("/std/vector"), tag its wire kind ("vector") and size the
// template's fixed handle size.
func NewContainer(kind, tag string, elem *Type, size uint32) (*Type, error) {
	if elem.IsNull() {
		return nil, errors.InvalidData(errors.OpValidate, "container of null type")
	}
	t := &Type{
		Name:          ContainerName(kind, elem.Name),
		Kind:          KindContainer,
		Size:          size,
		Elem:          elem,
		ContainerKind: tag,
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks every invariant a registry member must satisfy: a
// well-formed absolute name, a positive size and consistent kind-specific
// layout data. The null sentinel never validates.
func Validate(t *Type) error {
	if t == nil || t.Kind == KindNull {
		return errors.InvalidData(errors.OpValidate, "null type cannot be a registry member")
	}
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	if t.Size == 0 {
		return errors.InvalidSize(errors.OpValidate, t.Name, "zero size")
	}

	switch t.Kind {
	case KindNumeric:
		if int(t.Numeric) >= len(numericNames) {
			return errors.InvalidData(errors.OpValidate, "unknown numeric category")
		}
	case KindEnum:
		seen := make(map[string]bool, len(t.Values))
		for _, v := range t.Values {
			if v.Symbol == "" {
				return errors.New(errors.OpValidate, errors.KindInvalidData).
					Type(t.Name).Detail("empty enum symbol").Build()
			}
			if seen[v.Symbol] {
				return errors.New(errors.OpValidate, errors.KindInvalidData).
					Type(t.Name).Detail("duplicate enum symbol %q", v.Symbol).Build()
			}
			seen[v.Symbol] = true
		}
	case KindCompound:
		return validateFields(t)
	case KindArray:
		if t.Elem == nil || t.Count == 0 {
			return errors.InvalidData(errors.OpValidate, "array needs an element type and a positive count")
		}
		if uint64(t.Size) != uint64(t.Elem.Size)*uint64(t.Count) {
			return errors.InvalidSize(errors.OpValidate, t.Name, "array size is not count times element size")
		}
	case KindPointer:
		if t.Elem == nil {
			return errors.InvalidData(errors.OpValidate, "pointer needs a pointee type")
		}
	case KindContainer:
		if t.Elem == nil {
			return errors.InvalidData(errors.OpValidate, "container needs an element type")
		}
		if t.ContainerKind == "" {
			return errors.New(errors.OpValidate, errors.KindInvalidData).
				Type(t.Name).Detail("container without a kind tag").Build()
		}
	}
	return nil
}

func validateFields(t *Type) error {
	seen := make(map[string]bool, len(t.Fields))
	end := uint32(0)
	for i, f := range t.Fields {
		if f.Name == "" {
			return errors.New(errors.OpValidate, errors.KindInvalidData).
				Type(t.Name).Detail("unnamed field at index %d", i).Build()
		}
		if seen[f.Name] {
			return errors.New(errors.OpValidate, errors.KindInvalidData).
				Type(t.Name).Detail("duplicate field %q", f.Name).Build()
		}
		seen[f.Name] = true
		if f.Type == nil || f.Type.IsNull() {
			return errors.New(errors.OpValidate, errors.KindInvalidData).
				Type(t.Name).Detail("field %q has no type", f.Name).Build()
		}
		if f.Offset < end {
			return errors.New(errors.OpValidate, errors.KindInvalidSize).
				Type(t.Name).Detail("field %q overlaps its predecessor", f.Name).Build()
		}
		end = f.End()
		if end > t.Size {
			return errors.New(errors.OpValidate, errors.KindInvalidSize).
				Type(t.Name).Detail("field %q ends past compound size %d", f.Name, t.Size).Build()
		}
	}
	return nil
}
