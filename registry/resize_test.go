package registry

import (
	"errors"
	"testing"

	tlerrors "github.com/wippyai/typelib/errors"
	"github.com/wippyai/typelib/typemodel"
)

func TestResizePropagation(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	b, _ := typemodel.NewOpaque("/B", 12)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(b); err != nil {
		t.Fatal(err)
	}
	c := addCompound(t, r, "/C", "/A", "/B") // x:/A@0, y:/B@4, size 16

	if err := r.Resize(map[string]uint32{"/A": 8}); err != nil {
		t.Fatal(err)
	}

	if a.Size != 8 {
		t.Errorf("A size = %d, want 8", a.Size)
	}
	if c.Fields[1].Offset != 8 {
		t.Errorf("y offset = %d, want 8", c.Fields[1].Offset)
	}
	if c.Size != 8+12 {
		t.Errorf("C size = %d, want 20", c.Size)
	}
}

func TestResizeTransitive(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	inner := addCompound(t, r, "/Inner", "/A", "/A") // size 8
	outer := addCompound(t, r, "/Outer", "/Inner", "/int32_t")

	if err := r.Resize(map[string]uint32{"/A": 6}); err != nil {
		t.Fatal(err)
	}

	if inner.Size != 12 || inner.Fields[1].Offset != 6 {
		t.Errorf("inner = size %d, y@%d; want 12, 6", inner.Size, inner.Fields[1].Offset)
	}
	if outer.Fields[1].Offset != 12 || outer.Size != 16 {
		t.Errorf("outer = size %d, y@%d; want 16, 12", outer.Size, outer.Fields[1].Offset)
	}
}

func TestResizeArrays(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	arr, err := r.Build("/A[3]")
	if err != nil {
		t.Fatal(err)
	}
	matrix, err := r.Build("/A[3][2]")
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Resize(map[string]uint32{"/A": 8}); err != nil {
		t.Fatal(err)
	}
	if arr.Size != 24 {
		t.Errorf("array size = %d, want 24", arr.Size)
	}
	if matrix.Size != 48 {
		t.Errorf("matrix size = %d, want 48", matrix.Size)
	}
}

func TestResizePointerIsolation(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	ptr, err := r.Build("/A*")
	if err != nil {
		t.Fatal(err)
	}
	holder := addCompound(t, r, "/Holder", "/A*", "/int32_t")
	wantOffset := holder.Fields[1].Offset

	if err := r.Resize(map[string]uint32{"/A": 64}); err != nil {
		t.Fatal(err)
	}

	if ptr.Size != DefaultPointerSize {
		t.Errorf("pointer size changed to %d", ptr.Size)
	}
	if holder.Fields[1].Offset != wantOffset {
		t.Error("pointer field shifted despite fixed pointer size")
	}
}

func TestResizeContainersKeepHandleSize(t *testing.T) {
	r := newTestRegistry(t)
	vec, err := r.Build("/std/vector</double>")
	if err != nil {
		t.Fatal(err)
	}
	holder := addCompound(t, r, "/H", "/std/vector</double>", "/int32_t")

	if err := r.Resize(map[string]uint32{"/double": 16}); err != nil {
		t.Fatal(err)
	}
	if vec.Size != 24 {
		t.Errorf("vector handle size = %d, want 24", vec.Size)
	}
	if vec.Elem.Size != 16 {
		t.Errorf("element size = %d, want 16", vec.Elem.Size)
	}
	if holder.Fields[1].Offset != 24 {
		t.Error("container field shifted despite fixed handle size")
	}
}

func TestResizePointerCycleTerminates(t *testing.T) {
	r := NewRegistry()
	node := &typemodel.Type{Name: "/Node", Kind: typemodel.KindCompound, Size: 12}
	ptr := &typemodel.Type{Name: "/Node*", Kind: typemodel.KindPointer, Size: 8, Elem: node}
	payload := &typemodel.Type{Name: "/Payload", Kind: typemodel.KindOpaque, Size: 4}
	node.Fields = []typemodel.Field{
		{Name: "value", Offset: 0, Type: payload},
		{Name: "next", Offset: 4, Type: ptr},
	}
	if err := r.AddSet([]*typemodel.Type{node, ptr, payload}); err != nil {
		t.Fatal(err)
	}

	if err := r.Resize(map[string]uint32{"/Payload": 8}); err != nil {
		t.Fatal(err)
	}
	if node.Fields[1].Offset != 8 || node.Size != 16 {
		t.Errorf("node = size %d, next@%d; want 16, 8", node.Size, node.Fields[1].Offset)
	}
	if ptr.Size != 8 {
		t.Error("pointer into the cycle changed size")
	}
}

func TestResizePreservesPadding(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	// x@0 (/A, 4 bytes), 4 bytes of padding, y@8 (/int32_t), then 4 bytes
	// of trailing padding: declared size 16.
	c, err := typemodel.NewCompound("/Padded", 16, []typemodel.Field{
		{Name: "x", Offset: 0, Type: a},
		{Name: "y", Offset: 8, Type: r.Get("/int32_t")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Add(c); err != nil {
		t.Fatal(err)
	}

	if err := r.Resize(map[string]uint32{"/A": 6}); err != nil {
		t.Fatal(err)
	}

	// The inter-field gap and the trailing padding both survive.
	if c.Fields[1].Offset != 10 {
		t.Errorf("y offset = %d, want 10", c.Fields[1].Offset)
	}
	if c.Size != 18 {
		t.Errorf("size = %d, want 18", c.Size)
	}
}

func TestResizeCompoundDirectly(t *testing.T) {
	r := newTestRegistry(t)
	c := addCompound(t, r, "/C", "/double", "/int32_t") // size 12

	// Growing adds trailing padding.
	if err := r.Resize(map[string]uint32{"/C": 24}); err != nil {
		t.Fatal(err)
	}
	if c.Size != 24 || c.Fields[1].Offset != 8 {
		t.Errorf("c = size %d, y@%d; want 24, 8", c.Size, c.Fields[1].Offset)
	}

	// Shrinking below the field span fails.
	err := r.Resize(map[string]uint32{"/C": 8})
	if !errors.Is(err, &tlerrors.Error{Kind: tlerrors.KindInvalidSize}) {
		t.Errorf("shrink = %v, want invalid_size", err)
	}
	if c.Size != 24 {
		t.Error("failed resize mutated the compound")
	}
}

func TestResizeErrors(t *testing.T) {
	r := newTestRegistry(t)
	addCompound(t, r, "/C", "/double")
	if _, err := r.Build("/double*"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Build("/double[2]"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Build("/std/vector</double>"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		sizes map[string]uint32
		kind  tlerrors.Kind
	}{
		{"unknown type", map[string]uint32{"/Nope": 4}, tlerrors.KindUndefined},
		{"pointer", map[string]uint32{"/double*": 4}, tlerrors.KindInvalidSize},
		{"array", map[string]uint32{"/double[2]": 4}, tlerrors.KindInvalidSize},
		{"container", map[string]uint32{"/std/vector</double>": 4}, tlerrors.KindInvalidSize},
		{"zero size", map[string]uint32{"/double": 0}, tlerrors.KindInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Resize(tt.sizes)
			if !errors.Is(err, &tlerrors.Error{Kind: tt.kind}) {
				t.Errorf("Resize = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestResizeAtomicOnFailure(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := typemodel.NewOpaque("/A", 4)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	c := addCompound(t, r, "/C", "/A", "/int32_t") // size 8

	// /A would grow, but /C's explicit ceiling cannot hold the fields.
	err := r.Resize(map[string]uint32{"/A": 16, "/C": 8})
	if !errors.Is(err, &tlerrors.Error{Kind: tlerrors.KindInvalidSize}) {
		t.Fatalf("Resize = %v, want invalid_size", err)
	}

	if a.Size != 4 || c.Size != 8 || c.Fields[1].Offset != 4 {
		t.Error("failed resize must leave every type unchanged")
	}
}

func TestResizeEmptyMap(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Resize(nil); err != nil {
		t.Errorf("Resize(nil) = %v", err)
	}
}
