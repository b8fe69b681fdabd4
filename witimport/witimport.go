// Package witimport converts WIT type definitions into registry types
// laid out per the Component Model canonical ABI. Records and tuples
// become compounds with aligned field offsets, enums become enums sized
// by their discriminant, lists and strings become handle-sized
// containers, and variants collapse to a tag field plus an opaque
// payload region.
//
// Conversion is programmatic rather than byte-driven: WIT graphs arrive
// as in-memory wit.Type values, typically produced by component tooling,
// so witimport is a library entry point and not a format driver.
package witimport

import (
	"fmt"
	"sort"
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/registry"
	"github.com/wippyai/typelib/typemodel"
)

// alignKey carries a synthesized type's ABI alignment through metadata so
// later imports into the same registry can recover it.
const alignKey = "wit:align"

// Importer converts WIT types into one registry, synthesizing names for
// anonymous nested definitions under a fixed namespace.
type Importer struct {
	reg       *registry.Registry
	namespace string

	staged map[string]*typemodel.Type
	aligns map[string]uint32
}

// New returns an importer installing under the given namespace, e.g.
// "/wit". The namespace also hosts the list and string container
// templates the canonical ABI needs.
func New(reg *registry.Registry, namespace string) (*Importer, error) {
	if err := typemodel.ValidateName(namespace); err != nil {
		return nil, err
	}
	im := &Importer{reg: reg, namespace: namespace}
	templates := []registry.ContainerKind{
		{Name: namespace + "/list", Tag: "list", Size: 8},
		{Name: namespace + "/string", Tag: "string", Size: 8},
	}
	for _, tpl := range templates {
		if err := reg.RegisterContainer(tpl); err != nil {
			return nil, err
		}
	}
	return im, nil
}

// Import converts t and everything it references, installs the new types
// atomically and returns the registry's instance for the top-level type.
// name is the WIT type's declared name; it is qualified with the
// importer's namespace unless already absolute.
func (im *Importer) Import(name string, t wit.Type) (*typemodel.Type, error) {
	if name == "" {
		return nil, errors.BadName(errors.OpConvert, name, "empty type name")
	}
	if name[0] != '/' {
		name = im.namespace + "/" + name
	}
	if err := typemodel.ValidateName(name); err != nil {
		return nil, err
	}

	im.staged = make(map[string]*typemodel.Type)
	im.aligns = make(map[string]uint32)
	top, _, err := im.convert(name, t)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(im.staged))
	for n := range im.staged {
		names = append(names, n)
	}
	sort.Strings(names)
	types := make([]*typemodel.Type, len(names))
	for i, n := range names {
		types[i] = im.staged[n]
	}
	if err := im.reg.AddSet(types); err != nil {
		return nil, err
	}
	return top, nil
}

// lookup reuses a type already present in the registry or staged by this
// conversion. A present type with a conflicting definition is an error at
// stage time rather than at AddSet.
func (im *Importer) lookup(name string, want *typemodel.Type) (*typemodel.Type, uint32, bool, error) {
	if existing := im.reg.Get(name); existing != nil {
		if want != nil && !typemodel.Equal(existing, want) {
			return nil, 0, false, errors.Mismatch(errors.OpConvert, name)
		}
		return existing, alignOf(existing), true, nil
	}
	if staged, ok := im.staged[name]; ok {
		return staged, im.aligns[name], true, nil
	}
	return nil, 0, false, nil
}

func (im *Importer) stage(t *typemodel.Type, align uint32) (*typemodel.Type, uint32, error) {
	if existing, a, ok, err := im.lookup(t.Name, t); err != nil || ok {
		return existing, a, err
	}
	if err := typemodel.Validate(t); err != nil {
		return nil, 0, err
	}
	im.staged[t.Name] = t
	im.aligns[t.Name] = align
	return t, align, nil
}

func (im *Importer) convert(path string, t wit.Type) (*typemodel.Type, uint32, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return im.scalar("/bool", 1, typemodel.UInt)
	case wit.U8:
		return im.scalar("/uint8_t", 1, typemodel.UInt)
	case wit.S8:
		return im.scalar("/int8_t", 1, typemodel.SInt)
	case wit.U16:
		return im.scalar("/uint16_t", 2, typemodel.UInt)
	case wit.S16:
		return im.scalar("/int16_t", 2, typemodel.SInt)
	case wit.U32:
		return im.scalar("/uint32_t", 4, typemodel.UInt)
	case wit.S32:
		return im.scalar("/int32_t", 4, typemodel.SInt)
	case wit.U64:
		return im.scalar("/uint64_t", 8, typemodel.UInt)
	case wit.S64:
		return im.scalar("/int64_t", 8, typemodel.SInt)
	case wit.F32:
		return im.scalar("/float", 4, typemodel.Float)
	case wit.F64:
		return im.scalar("/double", 8, typemodel.Float)
	case wit.Char:
		// A char is a unicode scalar value, a 4-byte unsigned code point.
		return im.scalar("/uint32_t", 4, typemodel.UInt)
	case wit.String:
		return im.stringHandle()
	case *wit.TypeDef:
		return im.convertTypeDef(path, typ)
	default:
		return nil, 0, errors.Unsupported(errors.OpConvert, fmt.Sprintf("wit type %T", t))
	}
}

func (im *Importer) convertTypeDef(path string, t *wit.TypeDef) (*typemodel.Type, uint32, error) {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		return im.convertRecord(path, kind.Fields)
	case *wit.Tuple:
		fields := make([]wit.Field, len(kind.Types))
		for i, ft := range kind.Types {
			fields[i] = wit.Field{Name: "f" + strconv.Itoa(i), Type: ft}
		}
		return im.convertRecord(path, fields)
	case *wit.Enum:
		return im.convertEnum(path, kind)
	case *wit.Flags:
		return im.convertFlags(path, kind)
	case *wit.List:
		return im.convertList(path, kind)
	case *wit.Option:
		return im.convertVariant(path, []wit.Case{
			{Name: "none"},
			{Name: "some", Type: kind.Type},
		})
	case *wit.Result:
		return im.convertVariant(path, []wit.Case{
			{Name: "ok", Type: kind.OK},
			{Name: "error", Type: kind.Err},
		})
	case *wit.Variant:
		return im.convertVariant(path, kind.Cases)
	case *wit.Own, *wit.Borrow:
		// Resource handles are table indices on the wire.
		return im.scalar("/uint32_t", 4, typemodel.UInt)
	case wit.Type:
		return im.convert(path, kind)
	default:
		return nil, 0, errors.Unsupported(errors.OpConvert, fmt.Sprintf("wit kind %T", t.Kind))
	}
}

func (im *Importer) convertRecord(path string, fields []wit.Field) (*typemodel.Type, uint32, error) {
	if len(fields) == 0 {
		return nil, 0, errors.Unsupported(errors.OpConvert, "empty record "+path+" has no storable layout")
	}

	out := make([]typemodel.Field, len(fields))
	maxAlign := uint32(1)
	offset := uint32(0)
	for i, f := range fields {
		ft, align, err := im.convert(path+"_"+f.Name, f.Type)
		if err != nil {
			return nil, 0, err
		}
		offset = alignTo(offset, align)
		out[i] = typemodel.Field{Name: f.Name, Type: ft, Offset: offset}
		if align > maxAlign {
			maxAlign = align
		}
		offset += ft.Size
	}

	meta := typemodel.Metadata{alignKey: strconv.FormatUint(uint64(maxAlign), 10)}
	return im.stage(&typemodel.Type{
		Name:   path,
		Kind:   typemodel.KindCompound,
		Size:   alignTo(offset, maxAlign),
		Fields: out,
		Meta:   meta,
	}, maxAlign)
}

func (im *Importer) convertEnum(path string, e *wit.Enum) (*typemodel.Type, uint32, error) {
	if len(e.Cases) == 0 {
		return nil, 0, errors.Unsupported(errors.OpConvert, "empty enum "+path)
	}
	values := make([]typemodel.EnumValue, len(e.Cases))
	for i, c := range e.Cases {
		values[i] = typemodel.EnumValue{Symbol: c.Name, Value: int64(i)}
	}
	size := discriminantSize(len(e.Cases))
	return im.stage(&typemodel.Type{
		Name:   path,
		Kind:   typemodel.KindEnum,
		Size:   size,
		Values: values,
	}, size)
}

// convertFlags packs flag bits into the smallest unsigned scalar, or a
// run of u32 words beyond 64 flags.
func (im *Importer) convertFlags(path string, f *wit.Flags) (*typemodel.Type, uint32, error) {
	n := len(f.Flags)
	if n == 0 {
		return nil, 0, errors.Unsupported(errors.OpConvert, "empty flags "+path)
	}
	var size, align uint32
	switch {
	case n <= 8:
		size, align = 1, 1
	case n <= 16:
		size, align = 2, 2
	case n <= 32:
		size, align = 4, 4
	case n <= 64:
		size, align = 8, 8
	default:
		size, align = uint32((n+31)/32)*4, 4
	}
	meta := typemodel.Metadata{alignKey: strconv.FormatUint(uint64(align), 10)}
	for i, fl := range f.Flags {
		meta["flag:"+strconv.Itoa(i)] = fl.Name
	}
	return im.stage(&typemodel.Type{
		Name:    path,
		Kind:    typemodel.KindNumeric,
		Size:    size,
		Numeric: typemodel.UInt,
		Meta:    meta,
	}, align)
}

func (im *Importer) convertList(path string, l *wit.List) (*typemodel.Type, uint32, error) {
	elem, _, err := im.convert(path+"_elem", l.Type)
	if err != nil {
		return nil, 0, err
	}
	name := typemodel.ContainerName(im.namespace+"/list", elem.Name)
	typ, align, err := im.stage(&typemodel.Type{
		Name:          name,
		Kind:          typemodel.KindContainer,
		Size:          8, // [ptr: u32, len: u32]
		Elem:          elem,
		ContainerKind: "list",
	}, 4)
	return typ, align, err
}

func (im *Importer) stringHandle() (*typemodel.Type, uint32, error) {
	char, _, err := im.scalar("/uint8_t", 1, typemodel.UInt)
	if err != nil {
		return nil, 0, err
	}
	return im.stage(&typemodel.Type{
		Name:          im.namespace + "/string",
		Kind:          typemodel.KindContainer,
		Size:          8, // [ptr: u32, len: u32]
		Elem:          char,
		ContainerKind: "string",
	}, 4)
}

// convertVariant lowers a tagged union to a compound holding the
// discriminant and, when any case carries a payload, an opaque region
// sized and aligned for the largest one.
func (im *Importer) convertVariant(path string, cases []wit.Case) (*typemodel.Type, uint32, error) {
	if len(cases) == 0 {
		return nil, 0, errors.Unsupported(errors.OpConvert, "empty variant "+path)
	}

	discSize := discriminantSize(len(cases))
	maxAlign := discSize
	maxSize := uint32(0)
	meta := typemodel.Metadata{}
	for i, c := range cases {
		meta["case:"+strconv.Itoa(i)] = c.Name
		if c.Type == nil {
			continue
		}
		ct, align, err := im.convert(path+"_"+c.Name, c.Type)
		if err != nil {
			return nil, 0, err
		}
		if align > maxAlign {
			maxAlign = align
		}
		if ct.Size > maxSize {
			maxSize = ct.Size
		}
	}

	tag, _, err := im.discriminant(discSize)
	if err != nil {
		return nil, 0, err
	}
	fields := []typemodel.Field{{Name: "tag", Type: tag, Offset: 0}}
	payloadOffset := alignTo(discSize, maxAlign)
	if maxSize > 0 {
		payload, _, err := im.stage(&typemodel.Type{
			Name: path + "_payload",
			Kind: typemodel.KindOpaque,
			Size: maxSize,
		}, maxAlign)
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, typemodel.Field{Name: "payload", Type: payload, Offset: payloadOffset})
	}

	meta[alignKey] = strconv.FormatUint(uint64(maxAlign), 10)
	return im.stage(&typemodel.Type{
		Name:   path,
		Kind:   typemodel.KindCompound,
		Size:   alignTo(payloadOffset+maxSize, maxAlign),
		Fields: fields,
		Meta:   meta,
	}, maxAlign)
}

func (im *Importer) scalar(name string, size uint32, cat typemodel.NumericCategory) (*typemodel.Type, uint32, error) {
	typ, err := typemodel.NewNumeric(name, size, cat)
	if err != nil {
		return nil, 0, err
	}
	return im.stage(typ, size)
}

func (im *Importer) discriminant(size uint32) (*typemodel.Type, uint32, error) {
	switch size {
	case 1:
		return im.scalar("/uint8_t", 1, typemodel.UInt)
	case 2:
		return im.scalar("/uint16_t", 2, typemodel.UInt)
	default:
		return im.scalar("/uint32_t", 4, typemodel.UInt)
	}
}

// 1 byte for up to 256 cases, 2 up to 65536, 4 beyond.
func discriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	}
	if numCases <= 65536 {
		return 2
	}
	return 4
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// alignOf recovers the ABI alignment of an already-installed type: from
// its recorded metadata when present, otherwise from its layout.
func alignOf(t *typemodel.Type) uint32 {
	if v, ok := t.Meta[alignKey]; ok {
		if a, err := strconv.ParseUint(v, 10, 32); err == nil && a > 0 {
			return uint32(a)
		}
	}
	switch t.Kind {
	case typemodel.KindNumeric, typemodel.KindEnum:
		if t.Size <= 8 {
			return t.Size
		}
		return 4
	case typemodel.KindContainer:
		return 4
	case typemodel.KindArray:
		return alignOf(t.Elem)
	case typemodel.KindCompound:
		max := uint32(1)
		for _, f := range t.Fields {
			if a := alignOf(f.Type); a > max {
				max = a
			}
		}
		return max
	default:
		return 1
	}
}
