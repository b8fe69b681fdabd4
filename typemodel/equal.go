package typemodel

// Equal reports structural equality between two types. It compares the
// category tag, size and every category-specific layout attribute;
// referenced types (field types, element types, pointees) are compared by
// canonical name only, which keeps the comparison total across registries
// and terminates on pointer cycles. Metadata never participates.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Size != b.Size {
		return false
	}

	switch a.Kind {
	case KindNumeric:
		return a.Numeric == b.Numeric
	case KindEnum:
		if len(a.Values) != len(b.Values) {
			return false
		}
		for i, v := range a.Values {
			if b.Values[i] != v {
				return false
			}
		}
		return true
	case KindCompound:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i, f := range a.Fields {
			g := b.Fields[i]
			if f.Name != g.Name || f.Offset != g.Offset || f.Type.Name != g.Type.Name {
				return false
			}
		}
		return true
	case KindArray:
		return a.Count == b.Count && a.Elem.Name == b.Elem.Name
	case KindPointer:
		return a.Elem.Name == b.Elem.Name
	case KindContainer:
		return a.ContainerKind == b.ContainerKind && a.Elem.Name == b.Elem.Name
	default:
		return true
	}
}
