// Package snapshot implements a compact binary persistence format for a
// type registry: a CBOR document compressed with zstd. Unlike the tlb
// format it also records registry-level state that XML documents leave
// implicit, namely the pointer size and the registered container
// templates, so a snapshot restores a registry exactly as it was.
//
// Encoding uses Core Deterministic Encoding, so exporting the same
// registry twice yields identical bytes.
//
// The driver registers itself under the "snapshot" tag:
//
//	import _ "github.com/wippyai/typelib/snapshot"
package snapshot

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/wippyai/typelib"
	"github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/registry"
	"github.com/wippyai/typelib/typemodel"
)

// formatVersion guards against decoding documents written by an
// incompatible future layout of the record structs.
const formatVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}

	registry.RegisterDriver("snapshot", Driver{})
}

// Driver is the snapshot format driver.
type Driver struct{}

type document struct {
	Version     int           `cbor:"v"`
	PointerSize uint32        `cbor:"ptr"`
	Kinds       []kindRecord  `cbor:"kinds,omitempty"`
	Types       []typeRecord  `cbor:"types"`
	Aliases     []aliasRecord `cbor:"aliases,omitempty"`
}

type kindRecord struct {
	Name string `cbor:"n"`
	Tag  string `cbor:"t"`
	Size uint32 `cbor:"s"`
}

type typeRecord struct {
	Name     string            `cbor:"n"`
	Kind     uint8             `cbor:"k"`
	Size     uint32            `cbor:"s"`
	Category string            `cbor:"cat,omitempty"`
	Elem     string            `cbor:"of,omitempty"`
	Count    uint32            `cbor:"count,omitempty"`
	Tag      string            `cbor:"tag,omitempty"`
	Fields   []fieldRecord     `cbor:"fields,omitempty"`
	Values   []valueRecord     `cbor:"values,omitempty"`
	Meta     map[string]string `cbor:"meta,omitempty"`
}

type fieldRecord struct {
	Name   string `cbor:"n"`
	Type   string `cbor:"t"`
	Offset uint32 `cbor:"o"`
}

type valueRecord struct {
	Symbol string `cbor:"sym"`
	Value  int64  `cbor:"v"`
}

type aliasRecord struct {
	Name   string `cbor:"n"`
	Target string `cbor:"t"`
}

// Import decompresses and decodes a snapshot into a fresh registry.
func (Driver) Import(data []byte, _ *typelib.Config) (*registry.Registry, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(errors.OpImport, errors.KindInvalidData, err, "decompress snapshot")
	}
	var doc document
	if err := decMode.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(errors.OpImport, errors.KindInvalidData, err, "decode snapshot document")
	}
	if doc.Version != formatVersion {
		return nil, errors.InvalidData(errors.OpImport, "unsupported snapshot version")
	}
	if doc.PointerSize == 0 {
		return nil, errors.InvalidData(errors.OpImport, "snapshot without a pointer size")
	}

	reg := registry.NewRegistry(registry.WithPointerSize(doc.PointerSize))
	for _, k := range doc.Kinds {
		if err := reg.RegisterContainer(registry.ContainerKind{Name: k.Name, Tag: k.Tag, Size: k.Size}); err != nil {
			return nil, err
		}
	}

	// Shells first, references second: record order does not constrain
	// the type graph.
	shells := make(map[string]*typemodel.Type, len(doc.Types))
	for _, rec := range doc.Types {
		if _, dup := shells[rec.Name]; dup {
			return nil, errors.InvalidData(errors.OpImport, "duplicate snapshot record for "+rec.Name)
		}
		if rec.Kind == uint8(typemodel.KindNull) || rec.Kind > uint8(typemodel.KindOpaque) {
			return nil, errors.InvalidData(errors.OpImport, "unknown type kind in record "+rec.Name)
		}
		typ := &typemodel.Type{
			Name:          rec.Name,
			Kind:          typemodel.Kind(rec.Kind),
			Size:          rec.Size,
			Count:         rec.Count,
			ContainerKind: rec.Tag,
		}
		if rec.Kind == uint8(typemodel.KindNumeric) {
			cat, ok := typemodel.ParseNumericCategory(rec.Category)
			if !ok {
				return nil, errors.InvalidData(errors.OpImport, "unknown numeric category "+rec.Category)
			}
			typ.Numeric = cat
		}
		for _, v := range rec.Values {
			typ.Values = append(typ.Values, typemodel.EnumValue{Symbol: v.Symbol, Value: v.Value})
		}
		for _, f := range rec.Fields {
			typ.Fields = append(typ.Fields, typemodel.Field{Name: f.Name, Offset: f.Offset})
		}
		if len(rec.Meta) > 0 {
			typ.Meta = typemodel.Metadata(rec.Meta).Clone()
		}
		shells[rec.Name] = typ
	}
	types := make([]*typemodel.Type, 0, len(shells))
	for _, rec := range doc.Types {
		typ := shells[rec.Name]
		if rec.Elem != "" {
			elem, ok := shells[rec.Elem]
			if !ok {
				return nil, errors.Undefined(errors.OpImport, rec.Elem)
			}
			typ.Elem = elem
		}
		for i, f := range rec.Fields {
			ft, ok := shells[f.Type]
			if !ok {
				return nil, errors.Undefined(errors.OpImport, f.Type)
			}
			typ.Fields[i].Type = ft
		}
		types = append(types, typ)
	}

	if err := reg.AddSet(types); err != nil {
		return nil, err
	}
	for _, a := range doc.Aliases {
		if err := reg.Alias(a.Target, a.Name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Export encodes the registry as a compressed snapshot.
func (Driver) Export(reg *registry.Registry, _ *typelib.Config) ([]byte, error) {
	doc := document{
		Version:     formatVersion,
		PointerSize: reg.PointerSize(),
	}
	for _, k := range reg.ContainerKinds() {
		doc.Kinds = append(doc.Kinds, kindRecord{Name: k.Name, Tag: k.Tag, Size: k.Size})
	}
	for _, t := range reg.Types() {
		rec := typeRecord{
			Name:  t.Name,
			Kind:  uint8(t.Kind),
			Size:  t.Size,
			Count: t.Count,
			Tag:   t.ContainerKind,
			Meta:  t.Meta,
		}
		if t.Kind == typemodel.KindNumeric {
			rec.Category = t.Numeric.String()
		}
		if t.Elem != nil {
			rec.Elem = t.Elem.Name
		}
		for _, f := range t.Fields {
			rec.Fields = append(rec.Fields, fieldRecord{Name: f.Name, Type: f.Type.Name, Offset: f.Offset})
		}
		for _, v := range t.Values {
			rec.Values = append(rec.Values, valueRecord{Symbol: v.Symbol, Value: v.Value})
		}
		doc.Types = append(doc.Types, rec)
	}
	for _, a := range reg.Aliases() {
		doc.Aliases = append(doc.Aliases, aliasRecord{Name: a.Name, Target: a.Target})
	}

	raw, err := encMode.Marshal(&doc)
	if err != nil {
		return nil, errors.Wrap(errors.OpExport, errors.KindExport, err, "encode snapshot document")
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}
