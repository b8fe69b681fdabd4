// Package tlb implements the native XML persistence format for a type
// registry: a flat list of type declarations under a <typelib> root.
//
// Declaration order never matters: import creates shells for every
// declaration first and links references in a second pass, so forward
// references and pointer cycles round-trip. Export writes declarations
// grouped by category and sorted by name; re-importing the output into an
// empty registry reproduces an identical type graph.
//
// The driver registers itself under the "tlb" tag:
//
//	import _ "github.com/wippyai/typelib/tlb"
//
//	reg := registry.NewRegistry()
//	err := reg.Import("tlb", data, nil)
package tlb

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/typelib"
	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/registry"
	"github.com/wippyai/typelib/typemodel"
)

func init() {
	registry.RegisterDriver("tlb", Driver{})
}

// Driver is the tlb format driver.
type Driver struct{}

type document struct {
	XMLName    xml.Name        `xml:"typelib"`
	Numerics   []numericDecl   `xml:"numeric"`
	Enums      []enumDecl      `xml:"enum"`
	Compounds  []compoundDecl  `xml:"compound"`
	Arrays     []derivedDecl   `xml:"array"`
	Containers []containerDecl `xml:"container"`
	Pointers   []pointerDecl   `xml:"pointer"`
	Opaques    []opaqueDecl    `xml:"opaque"`
	Aliases    []aliasDecl     `xml:"alias"`
}

type metadataDecl struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type numericDecl struct {
	Name     string         `xml:"name,attr"`
	Size     uint32         `xml:"size,attr"`
	Category string         `xml:"category,attr"`
	Metadata []metadataDecl `xml:"metadata"`
}

type valueDecl struct {
	Symbol string `xml:"symbol,attr"`
	Value  int64  `xml:"value,attr"`
}

type enumDecl struct {
	Name     string         `xml:"name,attr"`
	Size     uint32         `xml:"size,attr"`
	Values   []valueDecl    `xml:"value"`
	Metadata []metadataDecl `xml:"metadata"`
}

type fieldDecl struct {
	Name   string `xml:"name,attr"`
	Type   string `xml:"type,attr"`
	Offset uint32 `xml:"offset,attr"`
}

type compoundDecl struct {
	Name     string         `xml:"name,attr"`
	Size     uint32         `xml:"size,attr"`
	Fields   []fieldDecl    `xml:"field"`
	Metadata []metadataDecl `xml:"metadata"`
}

type derivedDecl struct {
	Name     string         `xml:"name,attr"`
	Of       string         `xml:"of,attr"`
	Size     uint32         `xml:"size,attr"`
	Metadata []metadataDecl `xml:"metadata"`
}

type containerDecl struct {
	Name     string         `xml:"name,attr"`
	Of       string         `xml:"of,attr"`
	Size     uint32         `xml:"size,attr"`
	Kind     string         `xml:"kind,attr"`
	Metadata []metadataDecl `xml:"metadata"`
}

type pointerDecl struct {
	Name     string         `xml:"name,attr"`
	Of       string         `xml:"of,attr"`
	Metadata []metadataDecl `xml:"metadata"`
}

type opaqueDecl struct {
	Name     string         `xml:"name,attr"`
	Size     uint32         `xml:"size,attr"`
	Metadata []metadataDecl `xml:"metadata"`
}

type aliasDecl struct {
	Name   string `xml:"name,attr"`
	Source string `xml:"source,attr"`
}

// shell is a declared type before its references are linked.
type shell struct {
	typ    *typemodel.Type
	of     string
	fields []string
}

// Import parses a tlb document into a fresh registry. The config key
// "pointer_size" overrides the pointer size recorded for pointer
// declarations, which carry none of their own.
func (Driver) Import(data []byte, cfg *typelib.Config) (*registry.Registry, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.OpImport, errors.KindInvalidData, err, "malformed tlb document")
	}

	var opts []registry.Option
	if cfg.Has("pointer_size") {
		size, err := strconv.ParseUint(cfg.Get("pointer_size"), 10, 32)
		if err != nil || size == 0 {
			return nil, errors.InvalidData(errors.OpImport, "pointer_size must be a positive integer")
		}
		opts = append(opts, registry.WithPointerSize(uint32(size)))
	}
	reg := registry.NewRegistry(opts...)

	shells := make(map[string]*shell)
	declare := func(s *shell) error {
		if _, dup := shells[s.typ.Name]; dup {
			return errors.InvalidData(errors.OpImport, "duplicate declaration of "+s.typ.Name)
		}
		shells[s.typ.Name] = s
		return nil
	}

	for _, d := range doc.Numerics {
		cat, ok := typemodel.ParseNumericCategory(d.Category)
		if !ok {
			return nil, errors.InvalidData(errors.OpImport, "unknown numeric category "+strconv.Quote(d.Category))
		}
		s := &shell{typ: &typemodel.Type{
			Name: d.Name, Kind: typemodel.KindNumeric, Size: d.Size,
			Numeric: cat, Meta: metaMap(d.Metadata),
		}}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Enums {
		values := make([]typemodel.EnumValue, len(d.Values))
		for i, v := range d.Values {
			values[i] = typemodel.EnumValue{Symbol: v.Symbol, Value: v.Value}
		}
		s := &shell{typ: &typemodel.Type{
			Name: d.Name, Kind: typemodel.KindEnum, Size: d.Size,
			Values: values, Meta: metaMap(d.Metadata),
		}}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Compounds {
		fields := make([]typemodel.Field, len(d.Fields))
		fieldTypes := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = typemodel.Field{Name: f.Name, Offset: f.Offset}
			fieldTypes[i] = f.Type
		}
		s := &shell{
			typ: &typemodel.Type{
				Name: d.Name, Kind: typemodel.KindCompound, Size: d.Size,
				Fields: fields, Meta: metaMap(d.Metadata),
			},
			fields: fieldTypes,
		}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Arrays {
		s := &shell{
			typ: &typemodel.Type{
				Name: d.Name, Kind: typemodel.KindArray, Size: d.Size,
				Meta: metaMap(d.Metadata),
			},
			of: d.Of,
		}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Containers {
		s := &shell{
			typ: &typemodel.Type{
				Name: d.Name, Kind: typemodel.KindContainer, Size: d.Size,
				ContainerKind: d.Kind, Meta: metaMap(d.Metadata),
			},
			of: d.Of,
		}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Pointers {
		s := &shell{
			typ: &typemodel.Type{
				Name: d.Name, Kind: typemodel.KindPointer, Size: reg.PointerSize(),
				Meta: metaMap(d.Metadata),
			},
			of: d.Of,
		}
		if err := declare(s); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Opaques {
		s := &shell{typ: &typemodel.Type{
			Name: d.Name, Kind: typemodel.KindOpaque, Size: d.Size,
			Meta: metaMap(d.Metadata),
		}}
		if err := declare(s); err != nil {
			return nil, err
		}
	}

	// Second pass: link references, then derive array counts from the
	// declared sizes.
	types := make([]*typemodel.Type, 0, len(shells))
	for _, s := range shells {
		resolve := func(name string) (*typemodel.Type, error) {
			if dep, ok := shells[name]; ok {
				return dep.typ, nil
			}
			return nil, errors.Undefined(errors.OpImport, name)
		}
		if s.of != "" {
			elem, err := resolve(s.of)
			if err != nil {
				return nil, err
			}
			s.typ.Elem = elem
		}
		for i, fn := range s.fields {
			ft, err := resolve(fn)
			if err != nil {
				return nil, err
			}
			s.typ.Fields[i].Type = ft
		}
		types = append(types, s.typ)
	}
	for _, s := range shells {
		if s.typ.Kind != typemodel.KindArray {
			continue
		}
		if s.typ.Elem == nil {
			return nil, errors.InvalidData(errors.OpImport, "array "+s.typ.Name+" without an element type")
		}
		if s.typ.Elem.Size == 0 || s.typ.Size%s.typ.Elem.Size != 0 {
			return nil, errors.InvalidSize(errors.OpImport, s.typ.Name, "array size is not a multiple of the element size")
		}
		s.typ.Count = s.typ.Size / s.typ.Elem.Size
	}

	if err := reg.AddSet(types); err != nil {
		return nil, err
	}

	// Container instances double as template registrations so later
	// builds can reuse their kind.
	for _, s := range shells {
		if s.typ.Kind != typemodel.KindContainer {
			continue
		}
		if open := strings.IndexByte(s.typ.Name, '<'); open > 0 {
			_ = reg.RegisterContainer(registry.ContainerKind{
				Name: s.typ.Name[:open],
				Tag:  s.typ.ContainerKind,
				Size: s.typ.Size,
			})
		}
	}

	sort.Slice(doc.Aliases, func(i, j int) bool { return doc.Aliases[i].Name < doc.Aliases[j].Name })
	for _, a := range doc.Aliases {
		if err := reg.Alias(a.Source, a.Name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Export serializes the registry as a tlb document.
func (Driver) Export(reg *registry.Registry, _ *typelib.Config) ([]byte, error) {
	var doc document
	for _, t := range reg.Types() {
		meta := metaDecls(t.Meta)
		switch t.Kind {
		case typemodel.KindNumeric:
			doc.Numerics = append(doc.Numerics, numericDecl{
				Name: t.Name, Size: t.Size, Category: t.Numeric.String(), Metadata: meta,
			})
		case typemodel.KindEnum:
			values := make([]valueDecl, len(t.Values))
			for i, v := range t.Values {
				values[i] = valueDecl{Symbol: v.Symbol, Value: v.Value}
			}
			doc.Enums = append(doc.Enums, enumDecl{
				Name: t.Name, Size: t.Size, Values: values, Metadata: meta,
			})
		case typemodel.KindCompound:
			fields := make([]fieldDecl, len(t.Fields))
			for i, f := range t.Fields {
				fields[i] = fieldDecl{Name: f.Name, Type: f.Type.Name, Offset: f.Offset}
			}
			doc.Compounds = append(doc.Compounds, compoundDecl{
				Name: t.Name, Size: t.Size, Fields: fields, Metadata: meta,
			})
		case typemodel.KindArray:
			doc.Arrays = append(doc.Arrays, derivedDecl{
				Name: t.Name, Of: t.Elem.Name, Size: t.Size, Metadata: meta,
			})
		case typemodel.KindContainer:
			doc.Containers = append(doc.Containers, containerDecl{
				Name: t.Name, Of: t.Elem.Name, Size: t.Size, Kind: t.ContainerKind, Metadata: meta,
			})
		case typemodel.KindPointer:
			doc.Pointers = append(doc.Pointers, pointerDecl{
				Name: t.Name, Of: t.Elem.Name, Metadata: meta,
			})
		case typemodel.KindOpaque:
			doc.Opaques = append(doc.Opaques, opaqueDecl{
				Name: t.Name, Size: t.Size, Metadata: meta,
			})
		default:
			return nil, errors.Unsupported(errors.OpExport, "cannot persist "+t.Kind.String()+" type "+t.Name)
		}
	}
	for _, a := range reg.Aliases() {
		doc.Aliases = append(doc.Aliases, aliasDecl{Name: a.Name, Source: a.Target})
	}

	out, err := xml.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.OpExport, errors.KindExport, err, "marshal tlb document")
	}
	return append([]byte(xml.Header), out...), nil
}

func metaMap(decls []metadataDecl) typemodel.Metadata {
	if len(decls) == 0 {
		return nil
	}
	m := make(typemodel.Metadata, len(decls))
	for _, d := range decls {
		m[d.Key] = d.Value
	}
	return m
}

func metaDecls(m typemodel.Metadata) []metadataDecl {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]metadataDecl, len(keys))
	for i, k := range keys {
		out[i] = metadataDecl{Key: k, Value: m[k]}
	}
	return out
}
