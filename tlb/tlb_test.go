package tlb_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/typelib"
	tlerrors "github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/registry"
	"github.com/wippyai/typelib/tlb"
	"github.com/wippyai/typelib/typemodel"
)

// sampleRegistry reproduces the reference document: scalar numerics, the
// standard containers, a custom container kind, a compound with trailing
// padding, and an alias into another namespace.
func sampleRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.NewRegistry()

	double, err := typemodel.NewNumeric("/double", 8, typemodel.Float)
	if err != nil {
		t.Fatal(err)
	}
	double.Meta = typemodel.Metadata{"source": "fixture.h:12"}
	int8t, err := typemodel.NewNumeric("/int8_t", 1, typemodel.SInt)
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []*typemodel.Type{double, int8t} {
		if err := r.Add(typ); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.RegisterContainer(registry.ContainerKind{
		Name: "/ns_namedVector/NamedVector", Tag: "NamedVector", Size: 48,
	}); err != nil {
		t.Fatal(err)
	}

	// /std/string is a bracket-less container instance over its character
	// type, as the reference documents declare it.
	str := &typemodel.Type{
		Name: "/std/string", Kind: typemodel.KindContainer,
		Size: 32, Elem: int8t, ContainerKind: "string",
	}
	if err := r.Add(str); err != nil {
		t.Fatal(err)
	}

	for _, expr := range []string{
		"/std/vector</double>",
		"/std/vector</std/string>",
		"/ns_namedVector/NamedVector</double>",
		"/double*",
		"/double[3]",
	} {
		if _, err := r.Build(expr); err != nil {
			t.Fatalf("Build(%q): %v", expr, err)
		}
	}

	named := r.Get("/ns_namedVector/NamedVector</double>")
	if named == nil {
		t.Fatal("container instance missing after Build")
	}
	joints, err := typemodel.NewCompound("/ns_namedVector/samples/Joints", 56, []typemodel.Field{
		{Name: "elements", Type: named, Offset: 0},
		{Name: "bla", Type: int8t, Offset: 48},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Add(joints); err != nil {
		t.Fatal(err)
	}

	state, err := typemodel.NewEnum("/ns_namedVector/State", 4, []typemodel.EnumValue{
		{Symbol: "IDLE", Value: 0},
		{Symbol: "RUNNING", Value: 1},
		{Symbol: "FAULT", Value: -1},
	})
	if err != nil {
		t.Fatal(err)
	}
	blob, err := typemodel.NewOpaque("/blob", 16)
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []*typemodel.Type{state, blob} {
		if err := r.Add(typ); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Alias("/ns_namedVector/samples/Joints", "/ns_namedVector/commands/Joints"); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRoundTrip(t *testing.T) {
	src := sampleRegistry(t)

	data, err := src.Export("tlb", nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := registry.NewRegistry()
	if err := dst.Import("tlb", data, nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	wantNames := src.Names()
	gotNames := dst.Names()
	if len(gotNames) != len(wantNames) {
		t.Fatalf("re-import holds %d types, want %d\ngot:  %v\nwant: %v",
			len(gotNames), len(wantNames), gotNames, wantNames)
	}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Fatalf("name[%d] = %q, want %q", i, gotNames[i], wantNames[i])
		}
	}
	for _, name := range wantNames {
		want := src.Get(name)
		got := dst.Get(name)
		if got == nil {
			t.Fatalf("Get(%q) after re-import returned nothing", name)
		}
		if !typemodel.Equal(want, got) {
			t.Errorf("type %q differs after round trip:\ngot  %+v\nwant %+v", name, got, want)
		}
		for k, v := range want.Meta {
			if got.Meta[k] != v {
				t.Errorf("type %q lost metadata %q=%q", name, k, v)
			}
		}
	}

	aliased := dst.Get("/ns_namedVector/commands/Joints")
	if aliased == nil {
		t.Fatal("alias did not survive round trip")
	}
	canonical := dst.Get("/ns_namedVector/samples/Joints")
	if aliased != canonical {
		t.Error("alias resolves to a different instance than its target")
	}
	if aliased.Size != 56 || aliased.Fields[1].Name != "bla" || aliased.Fields[1].Offset != 48 {
		t.Errorf("Joints layout corrupted: size=%d fields=%+v", aliased.Size, aliased.Fields)
	}
}

func TestImportForwardReferences(t *testing.T) {
	// Dependents declared before their dependencies; the linker pass must
	// not care about document order.
	doc := `<?xml version="1.0"?>
<typelib>
  <alias name="/B" source="/A"/>
  <compound name="/A" size="16">
    <field name="next" type="/A*" offset="0"/>
    <field name="len" type="/uint32_t" offset="8"/>
    <metadata key="origin">hand-written</metadata>
  </compound>
  <pointer name="/A*" of="/A"/>
  <array name="/uint32_t[2]" of="/uint32_t" size="8"/>
  <numeric name="/uint32_t" size="4" category="uint"/>
</typelib>`

	r := registry.NewRegistry()
	if err := r.Import("tlb", []byte(doc), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	a := r.Get("/A")
	if a == nil {
		t.Fatal("/A not installed")
	}
	if a.Fields[0].Type.Elem != a {
		t.Error("pointer cycle not linked back to /A")
	}
	if a.Meta["origin"] != "hand-written" {
		t.Errorf("metadata = %v, want origin=hand-written", a.Meta)
	}
	arr := r.Get("/uint32_t[2]")
	if arr == nil || arr.Count != 2 || arr.Size != 8 {
		t.Errorf("array = %+v, want count 2 and size 8", arr)
	}
	if b := r.Get("/B"); b != a {
		t.Error("alias /B does not resolve to /A")
	}
}

func TestImportRegistersContainerTemplates(t *testing.T) {
	doc := `<?xml version="1.0"?>
<typelib>
  <numeric name="/double" size="8" category="float"/>
  <container name="/ns/Ring</double>" of="/double" size="40" kind="Ring"/>
</typelib>`

	r := registry.NewRegistry()
	if err := r.Import("tlb", []byte(doc), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	// The imported instance seeds a template usable by later builds.
	ints, err := typemodel.NewNumeric("/int32_t", 4, typemodel.SInt)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ints); err != nil {
		t.Fatal(err)
	}
	built, err := r.Build("/ns/Ring</int32_t>")
	if err != nil {
		t.Fatalf("Build with imported template: %v", err)
	}
	if built.Size != 40 || built.ContainerKind != "Ring" {
		t.Errorf("built container size=%d kind=%q, want 40 and Ring", built.Size, built.ContainerKind)
	}
}

func TestImportPointerSizeConfig(t *testing.T) {
	doc := `<?xml version="1.0"?>
<typelib>
  <numeric name="/double" size="8" category="float"/>
  <pointer name="/double*" of="/double"/>
</typelib>`

	cfg := typelib.NewConfig()
	cfg.Set("pointer_size", "4")
	reg, err := tlb.Driver{}.Import([]byte(doc), cfg)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	ptr := reg.Get("/double*")
	if ptr == nil {
		t.Fatal("/double* not installed")
	}
	if ptr.Size != 4 {
		t.Errorf("pointer size = %d, want 4 from config", ptr.Size)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		cfg  *typelib.Config
		kind tlerrors.Kind
	}{
		{
			name: "malformed xml",
			doc:  `<typelib><numeric`,
			kind: tlerrors.KindInvalidData,
		},
		{
			name: "duplicate declaration",
			doc: `<typelib>
  <numeric name="/double" size="8" category="float"/>
  <opaque name="/double" size="8"/>
</typelib>`,
			kind: tlerrors.KindInvalidData,
		},
		{
			name: "unknown numeric category",
			doc:  `<typelib><numeric name="/d" size="8" category="complex"/></typelib>`,
			kind: tlerrors.KindInvalidData,
		},
		{
			name: "unresolved reference",
			doc:  `<typelib><pointer name="/missing*" of="/missing"/></typelib>`,
			kind: tlerrors.KindUndefined,
		},
		{
			name: "array size not multiple of element",
			doc: `<typelib>
  <numeric name="/double" size="8" category="float"/>
  <array name="/double[?]" of="/double" size="20"/>
</typelib>`,
			kind: tlerrors.KindInvalidSize,
		},
		{
			name: "bad pointer_size config",
			doc:  `<typelib/>`,
			cfg: func() *typelib.Config {
				c := typelib.NewConfig()
				c.Set("pointer_size", "zero")
				return c
			}(),
			kind: tlerrors.KindInvalidData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tlb.Driver{}.Import([]byte(tt.doc), tt.cfg)
			if !stderrors.Is(err, &tlerrors.Error{Kind: tt.kind}) {
				t.Errorf("Import = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestExportIsSortedAndStable(t *testing.T) {
	r := sampleRegistry(t)

	first, err := r.Export("tlb", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Export("tlb", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("two exports of the same registry differ")
	}

	out := string(first)
	if !strings.HasPrefix(out, "<?xml") {
		t.Error("export is missing the XML header")
	}
	if strings.Index(out, `name="/double"`) > strings.Index(out, `name="/int8_t"`) {
		t.Error("numeric declarations are not sorted by name")
	}
}
